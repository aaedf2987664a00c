package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dionebr/pathprobe/scanner"
)

// liveRows is how many of the most recent hits stay on screen.
const liveRows = 20

type hitMsg scanner.Hit

type progressMsg struct {
	done int
	rate float64
}

type doneMsg scanner.Summary

type logMsg string

type model struct {
	target   string
	total    int
	results  []scanner.Hit
	progress progressMsg
	cancel   context.CancelFunc
	notice   string
	stopping bool
	finished bool
}

func newModel(target string, total int, cancel context.CancelFunc) model {
	return model{target: target, total: total, cancel: cancel}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.finished {
				return m, tea.Quit
			}
			if !m.stopping && m.cancel != nil {
				m.cancel()
			}
			m.stopping = true
		}

	case hitMsg:
		m.results = append(m.results, scanner.Hit(msg))

	case progressMsg:
		// sends from different workers can arrive out of order
		if msg.done >= m.progress.done {
			m.progress = msg
		}

	case logMsg:
		m.notice = string(msg)

	case doneMsg:
		m.finished = true
		s := scanner.Summary(msg)
		m.progress.done = s.Stats.Total + s.Stats.Skipped
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(paint(HeaderStyle, "Probing "+m.target))
	b.WriteString(paint(InfoStyle, "  (press 'q' to stop)"))
	b.WriteString("\n\n")

	start := 0
	if len(m.results) > liveRows {
		start = len(m.results) - liveRows
	}
	for _, h := range m.results[start:] {
		b.WriteString("  • " + RenderHit(h) + "\n")
	}
	if start > 0 {
		b.WriteString(paint(InfoStyle, fmt.Sprintf("  (%d earlier hits)\n", start)))
	}

	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(paint(WarnStyle, m.notice) + "\n")
	}
	fmt.Fprintf(&b, "%d/%d processed | %d found | %.1f req/s", m.progress.done, m.total, len(m.results), m.progress.rate)
	switch {
	case m.finished:
		b.WriteString("  " + paint(SuccessStyle, "done"))
	case m.stopping:
		b.WriteString("  " + paint(WarnStyle, "stopping, waiting for in-flight probes..."))
	}
	b.WriteString("\n")
	return b.String()
}

// Live is a full-screen listener backed by a bubbletea program. Run blocks
// on the UI; the scan runs elsewhere and calls Finish when it is over.
type Live struct {
	program *tea.Program
	rate    func() float64

	mu   sync.Mutex
	done int
}

// NewLive builds the view. cancel is called when the operator asks to stop.
func NewLive(target string, total int, rate func() float64, cancel context.CancelFunc, opts ...tea.ProgramOption) *Live {
	return &Live{
		program: tea.NewProgram(newModel(target, total, cancel), opts...),
		rate:    rate,
	}
}

func (l *Live) OnHit(h scanner.Hit) {
	l.program.Send(hitMsg(h))
}

func (l *Live) OnOutcome(scanner.Outcome) {
	l.advance(1)
}

func (l *Live) OnSkip(n int) {
	l.advance(n)
}

func (l *Live) advance(n int) {
	l.mu.Lock()
	l.done += n
	msg := progressMsg{done: l.done}
	l.mu.Unlock()
	if l.rate != nil {
		msg.rate = l.rate()
	}
	l.program.Send(msg)
}

// Write shows a log line under the hit list, so the logger can be pointed
// at the view instead of a terminal the view owns.
func (l *Live) Write(p []byte) (int, error) {
	if line := strings.TrimSpace(string(p)); line != "" {
		l.program.Send(logMsg(line))
	}
	return len(p), nil
}

// Run starts the UI and returns when it exits.
func (l *Live) Run() error {
	_, err := l.program.Run()
	return err
}

// Finish shows the final state and lets the UI exit.
func (l *Live) Finish(s scanner.Summary) {
	l.program.Send(doneMsg(s))
}
