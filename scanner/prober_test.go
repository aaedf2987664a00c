package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
)

func newTestProber(doer Doer, retries int, cfg ProberConfig) (*Prober, *RunControl) {
	control := NewRunControl()
	cfg.Retries = retries
	cfg.Timeout = time.Second
	cfg.Seed = 1
	return NewProber(doer, NewGovernor(0), control, cfg), control
}

func TestProbeClassifiesStatuses(t *testing.T) {
	doer := &fakeDoer{handle: func(path string, _ int, _ *fasthttp.Request, resp *fasthttp.Response) error {
		switch path {
		case "/ok":
			resp.SetStatusCode(200)
			resp.SetBodyString("hello")
		case "/private":
			resp.SetStatusCode(403)
		case "/moved":
			resp.SetStatusCode(301)
			resp.Header.Set("Location", "/moved/")
		case "/bare":
			resp.SetStatusCode(302)
		case "/broken":
			resp.SetStatusCode(500)
		default:
			resp.SetStatusCode(404)
		}
		return nil
	}}
	p, _ := newTestProber(doer, 0, ProberConfig{Detector: staticDetector{"Nginx"}})

	tests := []struct {
		candidate string
		kind      Kind
		status    int
		location  string
	}{
		{"ok", KindHit, 200, ""},
		{"private", KindHit, 403, ""},
		{"moved", KindHit, 301, "/moved/"},
		{"bare", KindHit, 302, UnknownLocation},
		{"missing", KindNotFound, 404, ""},
		{"broken", KindOther, 500, ""},
	}
	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			o := p.Probe(context.Background(), "http://example.test", tt.candidate)
			if o.Kind != tt.kind || o.Status != tt.status {
				t.Fatalf("got kind=%s status=%d, want %s %d", o.Kind, o.Status, tt.kind, tt.status)
			}
			if o.Attempts != 1 {
				t.Fatalf("attempts = %d, want 1", o.Attempts)
			}
			if tt.kind != KindHit {
				if o.Hit != nil {
					t.Fatalf("unexpected hit %+v", o.Hit)
				}
				return
			}
			if o.Hit.URL != "http://example.test/"+tt.candidate || o.Hit.Location != tt.location {
				t.Fatalf("unexpected hit %+v", o.Hit)
			}
		})
	}

	o := p.Probe(context.Background(), "http://example.test", "ok")
	if o.Hit.Size != 5 || len(o.Hit.Tech) != 1 || o.Hit.Tech[0] != "Nginx" {
		t.Fatalf("200 hit should carry size and tech: %+v", o.Hit)
	}
}

func TestProbeSurvivesDetectorPanic(t *testing.T) {
	doer := &fakeDoer{handle: func(_ string, _ int, _ *fasthttp.Request, resp *fasthttp.Response) error {
		resp.SetStatusCode(200)
		resp.SetBodyString("<html></html>")
		return nil
	}}
	p, _ := newTestProber(doer, 0, ProberConfig{Detector: panicDetector{}})

	o := p.Probe(context.Background(), "http://example.test", "admin")
	if o.Kind != KindHit || o.Hit == nil || o.Hit.Size != 13 || o.Hit.Tech != nil {
		t.Fatalf("hit should be kept without technologies: %+v", o)
	}
}

func TestProbeRecoversFromTransportPanic(t *testing.T) {
	doer := &fakeDoer{handle: func(string, int, *fasthttp.Request, *fasthttp.Response) error {
		panic("transport exploded")
	}}
	p, _ := newTestProber(doer, 2, ProberConfig{})

	o := p.Probe(context.Background(), "http://example.test", "admin")
	if o.Kind != KindFatal || o.ErrKind != "panic" || o.Err == nil || o.Hit != nil {
		t.Fatalf("got %+v", o)
	}
	if doer.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", doer.Calls())
	}
}

func TestProbeSendsHeaders(t *testing.T) {
	var ua, accept, custom string
	doer := &fakeDoer{handle: func(_ string, _ int, req *fasthttp.Request, resp *fasthttp.Response) error {
		ua = string(req.Header.UserAgent())
		accept = string(req.Header.Peek("Accept"))
		custom = string(req.Header.Peek("X-Bug-Bounty"))
		resp.SetStatusCode(404)
		return nil
	}}
	p, _ := newTestProber(doer, 0, ProberConfig{Headers: []string{"X-Bug-Bounty: researcher", "broken"}})
	p.Probe(context.Background(), "http://example.test", "x")

	known := false
	for _, a := range userAgents {
		known = known || a == ua
	}
	if !known {
		t.Fatalf("unexpected user agent %q", ua)
	}
	if accept != "*/*" || custom != "researcher" {
		t.Fatalf("accept=%q custom=%q", accept, custom)
	}
}

func TestProbeRetriesTransientErrors(t *testing.T) {
	doer := &fakeDoer{handle: func(_ string, call int, _ *fasthttp.Request, resp *fasthttp.Response) error {
		if call < 3 {
			return fasthttp.ErrTimeout
		}
		resp.SetStatusCode(200)
		return nil
	}}
	p, _ := newTestProber(doer, 2, ProberConfig{})

	o := p.Probe(context.Background(), "http://example.test", "admin")
	if o.Kind != KindHit || o.Attempts != 3 {
		t.Fatalf("got kind=%s attempts=%d, want hit after 3 attempts", o.Kind, o.Attempts)
	}
}

func TestProbeGivesUpAfterRetries(t *testing.T) {
	doer := &fakeDoer{handle: func(string, int, *fasthttp.Request, *fasthttp.Response) error {
		return fmt.Errorf("dial: %w", syscall.ECONNREFUSED)
	}}
	p, _ := newTestProber(doer, 2, ProberConfig{})

	o := p.Probe(context.Background(), "http://example.test", "admin")
	if o.Kind != KindTransient || o.Attempts != 3 || o.ErrKind != "refused" {
		t.Fatalf("got %+v", o)
	}
	if doer.Calls() != 3 {
		t.Fatalf("calls = %d, want 3", doer.Calls())
	}
}

func TestProbeDoesNotRetryFatalOrAnomaly(t *testing.T) {
	for _, tc := range []struct {
		err  error
		kind Kind
	}{
		{errors.New("tls: handshake failure"), KindFatal},
		{fasthttp.ErrBodyTooLarge, KindAnomaly},
		{errors.New("error when reading response headers: cannot find whitespace in the first line of response"), KindAnomaly},
	} {
		doer := &fakeDoer{handle: func(string, int, *fasthttp.Request, *fasthttp.Response) error { return tc.err }}
		p, _ := newTestProber(doer, 3, ProberConfig{})
		o := p.Probe(context.Background(), "http://example.test", "x")
		if o.Kind != tc.kind || doer.Calls() != 1 {
			t.Fatalf("%v: got kind=%s calls=%d, want %s after 1 call", tc.err, o.Kind, doer.Calls(), tc.kind)
		}
	}
}

func TestProbeSkipsWhenStopping(t *testing.T) {
	doer := &fakeDoer{}
	p, control := newTestProber(doer, 0, ProberConfig{})
	control.Stop(ReasonBreaker)

	if o := p.Probe(context.Background(), "http://example.test", "x"); o.Kind != KindSkipped {
		t.Fatalf("kind = %s, want skipped", o.Kind)
	}
	if doer.Calls() != 0 {
		t.Fatal("no request may be issued while stopping")
	}
}

func TestProbeStopsRetryingWhenStopping(t *testing.T) {
	var control *RunControl
	doer := &fakeDoer{handle: func(string, int, *fasthttp.Request, *fasthttp.Response) error {
		control.Stop(ReasonInterrupted)
		return io.EOF
	}}
	var p *Prober
	p, control = newTestProber(doer, 5, ProberConfig{})

	o := p.Probe(context.Background(), "http://example.test", "x")
	if o.Kind != KindTransient || doer.Calls() != 1 {
		t.Fatalf("got kind=%s calls=%d", o.Kind, doer.Calls())
	}
}

func TestProbeCancelledAdmission(t *testing.T) {
	doer := &fakeDoer{}
	p, _ := newTestProber(doer, 0, ProberConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if o := p.Probe(ctx, "http://example.test", "x"); o.Kind != KindSkipped {
		t.Fatalf("kind = %s, want skipped", o.Kind)
	}
	if doer.Calls() != 0 {
		t.Fatal("request issued without admission")
	}
}

func TestProbeMalformedURL(t *testing.T) {
	doer := &fakeDoer{}
	p, _ := newTestProber(doer, 2, ProberConfig{})

	o := p.Probe(context.Background(), "http://example.test", "%zz")
	if o.Kind != KindFatal || !errors.Is(o.Err, ErrMalformedURL) {
		t.Fatalf("got kind=%s err=%v", o.Kind, o.Err)
	}
	if doer.Calls() != 0 {
		t.Fatal("malformed candidate must not reach the network")
	}
}

type netErr struct{ timeout bool }

func (e netErr) Error() string   { return "network trouble" }
func (e netErr) Timeout() bool   { return e.timeout }
func (e netErr) Temporary() bool { return false }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err   error
		class errClass
		kind  string
	}{
		{fasthttp.ErrTimeout, classTransient, "timeout"},
		{fasthttp.ErrDialTimeout, classTransient, "timeout"},
		{context.DeadlineExceeded, classTransient, "timeout"},
		{fmt.Errorf("wrapped: %w", syscall.ECONNREFUSED), classTransient, "refused"},
		{syscall.ECONNRESET, classTransient, "reset"},
		{io.EOF, classTransient, "reset"},
		{fasthttp.ErrConnectionClosed, classTransient, "reset"},
		{fasthttp.ErrNoFreeConns, classTransient, "pool-exhausted"},
		{netErr{timeout: true}, classTransient, "timeout"},
		{netErr{}, classTransient, "network"},
		{errors.New("dial tcp: lookup example.invalid: no such host"), classTransient, "network"},
		{fasthttp.ErrBodyTooLarge, classAnomaly, "body-too-large"},
		{errors.New("error when reading response body: invalid chunk size"), classAnomaly, "malformed-response"},
		{errors.New("x509: certificate signed by unknown authority"), classFatal, "fatal"},
	}
	for _, tt := range tests {
		class, kind := classifyError(tt.err)
		if class != tt.class || kind != tt.kind {
			t.Errorf("classifyError(%v) = (%d, %s), want (%d, %s)", tt.err, class, kind, tt.class, tt.kind)
		}
	}
}
