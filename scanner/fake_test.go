package scanner

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

// fakeDoer answers requests from a handler keyed on the request path and
// records how many requests were in flight at once.
type fakeDoer struct {
	handle func(path string, call int, req *fasthttp.Request, resp *fasthttp.Response) error
	delay  time.Duration

	mu    sync.Mutex
	calls int
	paths []string

	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeDoer) DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, _ time.Duration) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	path := string(req.URI().Path())
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.paths = append(f.paths, path)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.handle == nil {
		resp.SetStatusCode(fasthttp.StatusNotFound)
		return nil
	}
	return f.handle(path, call, req, resp)
}

func (f *fakeDoer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recorder is a Listener that keeps everything it is told.
type recorder struct {
	mu       sync.Mutex
	hits     []Hit
	outcomes []Outcome
	skipped  int
}

func (r *recorder) OnHit(h Hit) {
	r.mu.Lock()
	r.hits = append(r.hits, h)
	r.mu.Unlock()
}

func (r *recorder) OnOutcome(o Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

func (r *recorder) OnSkip(n int) {
	r.mu.Lock()
	r.skipped += n
	r.mu.Unlock()
}

type staticDetector []string

func (d staticDetector) Technologies(map[string][]string, []byte) []string {
	return d
}

type panicDetector struct{}

func (panicDetector) Technologies(map[string][]string, []byte) []string {
	panic("detector exploded")
}
