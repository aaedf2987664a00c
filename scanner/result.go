package scanner

import (
	"fmt"
	"time"
)

// Kind tags the terminal outcome of probing one candidate.
type Kind int

const (
	KindHit Kind = iota
	KindNotFound
	KindOther
	KindTransient
	KindFatal
	KindAnomaly
	KindSkipped
)

func (k Kind) String() string {
	switch k {
	case KindHit:
		return "hit"
	case KindNotFound:
		return "not-found"
	case KindOther:
		return "other"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindAnomaly:
		return "anomaly"
	case KindSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsError reports whether the outcome counts toward the consecutive-error counter.
func (k Kind) IsError() bool {
	return k == KindTransient || k == KindFatal
}

// UnknownLocation is recorded for redirects that carry no Location header.
const UnknownLocation = "Unknown"

// Hit is one FoundSet entry: enough to re-render the line later.
type Hit struct {
	URL      string
	Status   int
	Size     int
	Location string
	Tech     []string
}

// IsRedirect reports whether the hit was a redirect response.
func (h Hit) IsRedirect() bool {
	return isRedirect(h.Status)
}

// Line renders the persisted form of a hit.
func (h Hit) Line() string {
	if h.IsRedirect() {
		return fmt.Sprintf("[%d] %s -> %s", h.Status, h.URL, h.Location)
	}
	return fmt.Sprintf("[%d] %s", h.Status, h.URL)
}

// Outcome is produced exactly once per candidate; retries happen before it exists.
type Outcome struct {
	Kind      Kind
	Candidate string
	URL       string
	Status    int
	Attempts  int
	Err       error
	ErrKind   string
	Hit       *Hit
}

// Stats is a snapshot of the run counters.
type Stats struct {
	Total       int
	OK          int
	Forbidden   int
	Redirects   int
	NotFound    int
	Other       int
	Errors      int
	Anomalies   int
	Consecutive int
	Skipped     int
}

// Found returns the number of hits counted in the snapshot.
func (s Stats) Found() int {
	return s.OK + s.Forbidden + s.Redirects
}

// Summary is the final report record.
type Summary struct {
	Target     string
	Stats      Stats
	Found      []Hit
	Planned    int
	Elapsed    time.Duration
	StopReason string
}

// Rate is the observed throughput in probes per second; 0 for an empty run.
func (s Summary) Rate() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Stats.Total) / secs
}

// Missed is every attempted candidate that did not produce a hit.
func (s Summary) Missed() int {
	return s.Stats.Total - len(s.Found)
}

// Stopped reports whether the run ended before exhausting the payload list.
func (s Summary) Stopped() bool {
	return s.StopReason != ""
}

func isRedirect(status int) bool {
	switch status {
	case 301, 302, 307, 308:
		return true
	}
	return false
}
