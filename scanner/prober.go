package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// ErrMalformedURL marks candidates that cannot form a request URL.
var ErrMalformedURL = errors.New("malformed url")

// Doer is the transport used by the prober. *fasthttp.Client satisfies it;
// fasthttp never follows redirects on a plain DoTimeout.
type Doer interface {
	DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error
}

// Fingerprinter names the technologies visible in a response.
type Fingerprinter interface {
	Technologies(headers map[string][]string, body []byte) []string
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"BugBountyResearch/1.0 (Security Testing)",
}

// ProberConfig carries the per-request settings. Headers are "Name: value"
// pairs; a zero Seed picks one from the clock.
type ProberConfig struct {
	Timeout  time.Duration
	Retries  int
	Headers  []string
	Seed     int64
	Detector Fingerprinter
	Log      *logrus.Entry
}

// Prober turns one candidate into exactly one Outcome.
type Prober struct {
	client   Doer
	gov      Admitter
	control  *RunControl
	timeout  time.Duration
	retries  int
	headers  [][2]string
	detector Fingerprinter
	log      *logrus.Entry

	mu  sync.Mutex
	rng *rand.Rand
}

// NewProber returns a prober that sends through client once gov admits it.
func NewProber(client Doer, gov Admitter, control *RunControl, cfg ProberConfig) *Prober {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log := cfg.Log
	if log == nil {
		log = discardEntry()
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &Prober{
		client:   client,
		gov:      gov,
		control:  control,
		timeout:  cfg.Timeout,
		retries:  retries,
		headers:  parseHeaders(cfg.Headers),
		detector: cfg.Detector,
		log:      log,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Probe requests target/candidate, retrying transient failures. It never
// panics past its boundary and never returns an error: faults become outcomes.
func (p *Prober) Probe(ctx context.Context, target, candidate string) (out Outcome) {
	out = Outcome{Candidate: candidate, URL: target + "/" + candidate}
	defer func() {
		if r := recover(); r != nil {
			out.Kind = KindFatal
			out.Hit = nil
			out.ErrKind = "panic"
			out.Err = fmt.Errorf("probe panic: %v", r)
		}
	}()
	if p.control.Stopping() {
		out.Kind = KindSkipped
		return out
	}
	if err := validateURL(out.URL); err != nil {
		out.Kind = KindFatal
		out.Err = err
		out.ErrKind = "malformed-url"
		return out
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var lastErr error
	lastKind := ""
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 && p.control.Stopping() {
			break
		}
		if err := p.gov.Admit(ctx); err != nil {
			if attempt == 0 {
				out.Kind = KindSkipped
				return out
			}
			break
		}
		out.Attempts++

		p.prepare(req, out.URL)
		resp.Reset()
		err := p.client.DoTimeout(req, resp, p.timeout)
		if err == nil {
			return p.classify(out, resp)
		}

		class, kind := classifyError(err)
		switch class {
		case classAnomaly:
			out.Kind = KindAnomaly
			out.Err = err
			out.ErrKind = kind
			return out
		case classFatal:
			out.Kind = KindFatal
			out.Err = err
			out.ErrKind = kind
			return out
		}
		lastErr, lastKind = err, kind
		p.log.WithFields(logrus.Fields{
			"url":     out.URL,
			"attempt": attempt + 1,
			"err":     err,
		}).Debug("probe attempt failed")
	}

	out.Kind = KindTransient
	out.Err = lastErr
	out.ErrKind = lastKind
	return out
}

func (p *Prober) prepare(req *fasthttp.Request, rawURL string) {
	req.Reset()
	req.SetRequestURI(rawURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", p.randomAgent())
	req.Header.Set("Accept", "*/*")
	for _, h := range p.headers {
		req.Header.Set(h[0], h[1])
	}
}

func (p *Prober) classify(out Outcome, resp *fasthttp.Response) Outcome {
	status := resp.StatusCode()
	out.Status = status
	switch {
	case status == fasthttp.StatusOK:
		body := resp.Body()
		hit := &Hit{URL: out.URL, Status: status, Size: len(body)}
		if p.detector != nil {
			hit.Tech = p.fingerprint(out.URL, resp, body)
		}
		out.Kind = KindHit
		out.Hit = hit
	case status == fasthttp.StatusForbidden:
		out.Kind = KindHit
		out.Hit = &Hit{URL: out.URL, Status: status, Size: len(resp.Body())}
	case isRedirect(status):
		loc := string(resp.Header.Peek(fasthttp.HeaderLocation))
		if loc == "" {
			loc = UnknownLocation
		}
		out.Kind = KindHit
		out.Hit = &Hit{URL: out.URL, Status: status, Location: loc}
	case status == fasthttp.StatusNotFound:
		out.Kind = KindNotFound
	default:
		out.Kind = KindOther
	}
	return out
}

// fingerprint drops the technology list, not the hit, when the detector panics.
func (p *Prober) fingerprint(url string, resp *fasthttp.Response, body []byte) (tech []string) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("url", url).Debugf("fingerprinting failed: %v", r)
			tech = nil
		}
	}()
	return p.detector.Technologies(responseHeaders(&resp.Header), body)
}

func (p *Prober) randomAgent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return userAgents[p.rng.Intn(len(userAgents))]
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrMalformedURL, raw)
	}
	return nil
}

func parseHeaders(raw []string) [][2]string {
	out := make([][2]string, 0, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		out = append(out, [2]string{name, strings.TrimSpace(value)})
	}
	return out
}

func responseHeaders(h *fasthttp.ResponseHeader) map[string][]string {
	out := make(map[string][]string)
	h.VisitAll(func(k, v []byte) {
		key := string(k)
		out[key] = append(out[key], string(v))
	})
	return out
}

type errClass int

const (
	classTransient errClass = iota
	classAnomaly
	classFatal
)

// Checked against the lowercased message when the error chain carries no
// typed cause (fasthttp formats several read errors with %s).
var (
	transientMarkers = []string{
		"timeout",
		"timed out",
		"connection reset",
		"connection refused",
		"connection closed",
		"broken pipe",
		"no such host",
		"eof",
	}
	anomalyMarkers = []string{
		"error when reading response headers",
		"error when reading response body",
		"cannot find whitespace",
		"cannot parse response status code",
		"unexpected content-length",
		"invalid chunk",
		"non-numeric",
	}
)

// classifyError separates retryable network trouble from malformed
// responses and everything else.
func classifyError(err error) (errClass, string) {
	switch {
	case errors.Is(err, fasthttp.ErrTimeout),
		errors.Is(err, fasthttp.ErrDialTimeout),
		errors.Is(err, fasthttp.ErrTLSHandshakeTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return classTransient, "timeout"
	case errors.Is(err, fasthttp.ErrBodyTooLarge):
		return classAnomaly, "body-too-large"
	case errors.Is(err, syscall.ECONNREFUSED):
		return classTransient, "refused"
	case errors.Is(err, fasthttp.ErrConnectionClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return classTransient, "reset"
	case errors.Is(err, fasthttp.ErrNoFreeConns):
		return classTransient, "pool-exhausted"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return classTransient, "timeout"
		}
		return classTransient, "network"
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return classTransient, "network"
		}
	}
	for _, m := range anomalyMarkers {
		if strings.Contains(msg, m) {
			return classAnomaly, "malformed-response"
		}
	}
	return classFatal, "fatal"
}

func discardEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
