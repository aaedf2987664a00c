package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/dionebr/pathprobe/scanner"
)

// Console prints hits as they arrive. With a progress writer it also draws a
// progress bar that tracks processed candidates, hits and the current rate.
type Console struct {
	out      io.Writer
	progress io.Writer
	rate     func() float64
	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	found    int
}

// NewConsole returns a listener writing hits to out. progress may be nil to
// disable the bar; rate may be nil.
func NewConsole(out, progress io.Writer, total int, rate func() float64) *Console {
	c := &Console{out: out, progress: progress, rate: rate}
	if progress != nil && total > 0 {
		c.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(progress),
			progressbar.OptionEnableColorCodes(!plain),
			progressbar.OptionSetDescription("[cyan]Probing...[reset]"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
	}
	return c
}

func (c *Console) OnHit(h scanner.Hit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar != nil {
		_ = c.bar.Clear()
	}
	c.found++
	fmt.Fprintln(c.out, RenderHit(h))
}

func (c *Console) OnOutcome(scanner.Outcome) {
	c.advance(1)
}

func (c *Console) OnSkip(n int) {
	c.advance(n)
}

func (c *Console) advance(n int) {
	if c.bar == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	desc := fmt.Sprintf("found %d", c.found)
	if c.rate != nil {
		desc += fmt.Sprintf(" | %.1f req/s", c.rate())
	}
	c.bar.Describe(desc)
	_ = c.bar.Add(n)
}

// Found is the number of hits printed so far.
func (c *Console) Found() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.found
}

// Finish completes the bar, if any, and moves past it.
func (c *Console) Finish() {
	if c.bar == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.bar.Finish()
	fmt.Fprintln(c.progress)
}
