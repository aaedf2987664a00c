package scanner

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Admitter gates every network attempt.
type Admitter interface {
	Admit(ctx context.Context) error
}

// Governor is a strict admission throttle: at most one probe per interval,
// with no stored capacity beyond a single admission.
type Governor struct {
	limiter  *rate.Limiter
	perSec   float64
	admitted atomic.Int64
	started  time.Time
}

// NewGovernor returns a governor admitting perSecond probes per second.
// A non-positive value disables throttling.
func NewGovernor(perSecond float64) *Governor {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Governor{
		limiter: rate.NewLimiter(limit, 1),
		perSec:  perSecond,
		started: time.Now(),
	}
}

// Admit blocks until the caller may issue its request. The reservation is
// taken atomically, so concurrent callers queue up one interval apart.
func (g *Governor) Admit(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	g.admitted.Add(1)
	return nil
}

// Interval is the minimum gap between two admissions.
func (g *Governor) Interval() time.Duration {
	if g.perSec <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / g.perSec)
}

// Admitted returns how many admissions were granted so far.
func (g *Governor) Admitted() int64 {
	return g.admitted.Load()
}

// CurrentRate is advisory and only used for display.
func (g *Governor) CurrentRate() float64 {
	elapsed := time.Since(g.started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(g.admitted.Load()) / elapsed
}
