package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/dionebr/pathprobe/utils"
)

// Listener observes a run while it happens. Methods are called from worker
// goroutines and must be safe for concurrent use.
type Listener interface {
	OnHit(h Hit)
	OnOutcome(o Outcome)
	OnSkip(n int)
}

type Option func(*Engine)

// WithListener streams hits and progress to l.
func WithListener(l Listener) Option {
	return func(e *Engine) { e.listener = l }
}

// WithSink persists each hit as it is recorded.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) { e.log = log }
}

// WithDetector enables technology fingerprinting of 200 responses.
func WithDetector(d Fingerprinter) Option {
	return func(e *Engine) { e.detector = d }
}

// Engine is the concurrency coordinator. One Engine drives one run.
type Engine struct {
	target  string
	threads int

	gov      *Governor
	control  *RunControl
	breaker  *Breaker
	agg      *Aggregator
	prober   *Prober
	sink     Sink
	detector Fingerprinter
	listener Listener
	log      *logrus.Entry
}

// NewEngine wires the governor, breaker, aggregator and prober for cfg.
// cfg must already be validated.
func NewEngine(cfg *utils.Config, client Doer, opts ...Option) *Engine {
	e := &Engine{
		target:  cfg.URL,
		threads: cfg.Threads,
		control: NewRunControl(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = discardEntry()
	}
	if e.threads < 1 {
		e.threads = 1
	}

	e.gov = NewGovernor(cfg.Rate)
	e.breaker = NewBreaker(cfg.StopOnErrors, e.control, e.log)
	e.agg = NewAggregator(e.sink)
	e.prober = NewProber(client, e.gov, e.control, ProberConfig{
		Timeout:  cfg.Timeout,
		Retries:  cfg.Retries,
		Headers:  cfg.Headers,
		Seed:     cfg.Seed,
		Detector: e.detector,
		Log:      e.log,
	})
	return e
}

func (e *Engine) Governor() *Governor { return e.gov }

// Run probes every payload and returns once all issued work has finished.
// Cancelling ctx stops issuance like a tripped breaker does; the summary is
// still produced from whatever was recorded.
func (e *Engine) Run(ctx context.Context, payloads []string) (Summary, error) {
	planned := len(payloads)
	e.agg.Restart()

	if ctx.Err() != nil {
		e.interrupt()
	}
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			e.interrupt()
		case <-finished:
		}
	}()

	runCtx, cancel := e.control.Context(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(e.threads, func(arg interface{}) {
		defer wg.Done()
		e.record(e.prober.Probe(runCtx, e.target, arg.(string)))
	}, ants.WithPanicHandler(func(p interface{}) {
		e.log.WithField("panic", p).Error("probe worker panicked")
	}))
	if err != nil {
		return e.agg.Summary(e.target, planned, e.control.Reason()), fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	dispatched := 0
	for _, candidate := range payloads {
		if ctx.Err() != nil {
			e.interrupt()
		}
		if e.control.Stopping() {
			break
		}
		wg.Add(1)
		if err := pool.Invoke(candidate); err != nil {
			wg.Done()
			e.log.WithError(err).Error("dispatch failed")
			break
		}
		dispatched++
	}
	wg.Wait()

	if rest := planned - dispatched; rest > 0 {
		e.agg.Skip(rest)
		if e.listener != nil {
			e.listener.OnSkip(rest)
		}
	}

	if err := e.agg.SinkErr(); err != nil {
		e.log.WithError(err).Error("writing results failed")
	}
	return e.agg.Summary(e.target, planned, e.control.Reason()), nil
}

func (e *Engine) interrupt() {
	if e.control.Stop(ReasonInterrupted) {
		e.log.Info("scan interrupted, waiting for in-flight probes")
	}
}

func (e *Engine) record(o Outcome) {
	consecutive := e.agg.Record(o)
	e.breaker.Observe(consecutive)

	switch o.Kind {
	case KindTransient, KindFatal, KindAnomaly:
		e.log.WithFields(logrus.Fields{
			"url":      o.URL,
			"kind":     o.Kind.String(),
			"reason":   o.ErrKind,
			"attempts": o.Attempts,
		}).Debug(o.Err)
	}

	if e.listener == nil {
		return
	}
	if o.Hit != nil {
		e.listener.OnHit(*o.Hit)
	}
	e.listener.OnOutcome(o)
}
