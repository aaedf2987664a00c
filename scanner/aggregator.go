package scanner

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Sink receives hits as they are recorded.
type Sink interface {
	WriteHit(h Hit) error
}

// FileSink appends one line per hit. Writes go straight to the file so a
// crash or abort keeps everything recorded so far.
type FileSink struct {
	f *os.File
}

// OpenFileSink opens path for appending, creating it if needed.
func OpenFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &FileSink{f: f}, nil
}

// WriteHit appends the hit's line.
func (s *FileSink) WriteHit(h Hit) error {
	_, err := fmt.Fprintln(s.f, h.Line())
	return err
}

func (s *FileSink) Close() error {
	return s.f.Close()
}

// Aggregator owns RunStats and the FoundSet. Every update is one short
// critical section, so a single outcome is never half-applied.
type Aggregator struct {
	mu      sync.Mutex
	stats   Stats
	found   []Hit
	sink    Sink
	sinkErr error
	started time.Time
}

// NewAggregator starts the run clock. sink may be nil.
func NewAggregator(sink Sink) *Aggregator {
	return &Aggregator{sink: sink, started: time.Now()}
}

// Record applies one outcome and returns the consecutive-error count after it.
func (a *Aggregator) Record(o Outcome) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if o.Kind == KindSkipped {
		a.stats.Skipped++
		return a.stats.Consecutive
	}

	a.stats.Total++
	switch o.Kind {
	case KindHit:
		a.stats.Consecutive = 0
		switch {
		case o.Status == 200:
			a.stats.OK++
		case o.Status == 403:
			a.stats.Forbidden++
		default:
			a.stats.Redirects++
		}
		if o.Hit != nil {
			a.found = append(a.found, *o.Hit)
			if a.sink != nil {
				if err := a.sink.WriteHit(*o.Hit); err != nil && a.sinkErr == nil {
					a.sinkErr = err
				}
			}
		}
	case KindNotFound:
		a.stats.Consecutive = 0
		a.stats.NotFound++
	case KindOther:
		a.stats.Consecutive = 0
		a.stats.Other++
	case KindAnomaly:
		a.stats.Anomalies++
	}
	if o.Kind.IsError() {
		a.stats.Errors++
		a.stats.Consecutive++
	}
	return a.stats.Consecutive
}

// Skip accounts for candidates that were never handed to a prober.
func (a *Aggregator) Skip(n int) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	a.stats.Skipped += n
	a.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (a *Aggregator) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Found returns a copy of the FoundSet in append order.
func (a *Aggregator) Found() []Hit {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Hit, len(a.found))
	copy(out, a.found)
	return out
}

// SinkErr is the first error returned by the output sink, if any.
func (a *Aggregator) SinkErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sinkErr
}

// Restart resets the run clock.
func (a *Aggregator) Restart() {
	a.mu.Lock()
	a.started = time.Now()
	a.mu.Unlock()
}

// Summary computes the report figures. Derived values live on Summary.
func (a *Aggregator) Summary(target string, planned int, reason string) Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	found := make([]Hit, len(a.found))
	copy(found, a.found)
	return Summary{
		Target:     target,
		Stats:      a.stats,
		Found:      found,
		Planned:    planned,
		Elapsed:    time.Since(a.started),
		StopReason: reason,
	}
}
