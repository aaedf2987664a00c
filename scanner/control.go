package scanner

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Stop reasons recorded on RunControl.
const (
	ReasonBreaker     = "consecutive errors"
	ReasonInterrupted = "interrupted"
)

// RunControl is the run-wide Running -> Stopping switch. It flips at most once.
type RunControl struct {
	stopping atomic.Bool
	once     sync.Once
	reason   atomic.Value
	done     chan struct{}
}

func NewRunControl() *RunControl {
	return &RunControl{done: make(chan struct{})}
}

// Stopping reports whether new network work must be skipped.
func (c *RunControl) Stopping() bool {
	return c.stopping.Load()
}

// Stop moves the run to Stopping. Only the first call has any effect and
// only that call returns true.
func (c *RunControl) Stop(reason string) bool {
	first := false
	c.once.Do(func() {
		c.reason.Store(reason)
		c.stopping.Store(true)
		close(c.done)
		first = true
	})
	return first
}

// Reason is empty while the run is still going.
func (c *RunControl) Reason() string {
	if r, ok := c.reason.Load().(string); ok {
		return r
	}
	return ""
}

// Done is closed when the run starts stopping.
func (c *RunControl) Done() <-chan struct{} {
	return c.done
}

// Context derives a context that is cancelled as soon as the run stops.
// Governor waits use it so queued probes give up their slot promptly.
func (c *RunControl) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Breaker trips RunControl once the consecutive-error counter reaches the threshold.
type Breaker struct {
	threshold int
	control   *RunControl
	tripped   atomic.Bool
	log       *logrus.Entry
}

// NewBreaker returns an armed breaker. A threshold <= 0 never trips.
func NewBreaker(threshold int, control *RunControl, log *logrus.Entry) *Breaker {
	return &Breaker{threshold: threshold, control: control, log: log}
}

// Observe is fed the consecutive-error count after every recorded outcome.
// It returns true only for the call that tripped the breaker.
func (b *Breaker) Observe(consecutive int) bool {
	if b.threshold <= 0 || consecutive < b.threshold {
		return false
	}
	if !b.tripped.CompareAndSwap(false, true) {
		return false
	}
	b.control.Stop(ReasonBreaker)
	if b.log != nil {
		b.log.WithField("threshold", b.threshold).
			Warn("consecutive errors detected, stopping scan to avoid overloading target")
	}
	return true
}

// Tripped reports whether the breaker has fired during this run.
func (b *Breaker) Tripped() bool {
	return b.tripped.Load()
}
