package utils

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"gopkg.in/yaml.v3"

	"github.com/dionebr/pathprobe/internal"
)

const (
	// MaxRate is the program-policy ceiling in requests per second.
	MaxRate = 100
	// SafeRate replaces any configured rate above MaxRate.
	SafeRate = 90
)

var (
	ErrNoTarget      = errors.New("target url is required")
	ErrInvalidTarget = errors.New("invalid target url")
)

type Config struct {
	URL        string   `yaml:"url"`
	Wordlist   string   `yaml:"wordlist"`
	Generate   bool     `yaml:"generate"`
	Limit      int      `yaml:"limit"`
	Extensions []string `yaml:"extensions"`
	Headers    []string `yaml:"headers"`

	Threads        int           `yaml:"threads"`
	Rate           float64       `yaml:"rate"`
	Timeout        time.Duration `yaml:"timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Retries        int           `yaml:"retries"`
	StopOnErrors   int           `yaml:"stop_on_errors"`

	MaxConns    int           `yaml:"max_conns"`
	DNSCacheTTL time.Duration `yaml:"dns_cache_ttl"`
	MaxBodySize int           `yaml:"max_body_size"`
	Proxy       string        `yaml:"proxy"`
	NoTLS       bool          `yaml:"no_tls_verify"`

	Output      string `yaml:"output"`
	Fingerprint bool   `yaml:"fingerprint"`
	Seed        int64  `yaml:"seed"`
	Verbose     bool   `yaml:"verbose"`
	TUI         bool   `yaml:"tui"`
	NoColor     bool   `yaml:"no_color"`
}

func DefaultConfig() *Config {
	return &Config{
		Threads:        50,
		Rate:           SafeRate,
		Timeout:        10 * time.Second,
		ConnectTimeout: 5 * time.Second,
		Retries:        1,
		StopOnErrors:   10,
		MaxConns:       100,
		DNSCacheTTL:    5 * time.Minute,
		MaxBodySize:    10 << 20,
		NoTLS:          true,
	}
}

// LoadFile merges a YAML file over cfg. Keys missing from the file keep
// their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate normalizes cfg in place. Adjustments the operator should know
// about come back as warnings; anything unusable is an error.
func (c *Config) Validate() ([]string, error) {
	var warnings []string

	target, err := NormalizeTarget(c.URL)
	if err != nil {
		return nil, err
	}
	c.URL = target

	if c.Rate <= 0 {
		return nil, fmt.Errorf("rate must be > 0, got %v", c.Rate)
	}
	if c.Rate > MaxRate {
		warnings = append(warnings, fmt.Sprintf("rate %v exceeds the %d req/sec policy ceiling, using %d", c.Rate, MaxRate, SafeRate))
		c.Rate = SafeRate
	}
	if c.Threads < 1 {
		return nil, fmt.Errorf("threads must be >= 1, got %d", c.Threads)
	}
	if c.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", c.Retries)
	}
	if c.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0, got %s", c.Timeout)
	}
	if c.ConnectTimeout <= 0 || c.ConnectTimeout > c.Timeout {
		c.ConnectTimeout = c.Timeout
	}
	if c.MaxConns < 1 {
		c.MaxConns = c.Threads
	}
	if c.Wordlist == "" && !c.Generate {
		return nil, errors.New("either a wordlist or generate mode is required")
	}

	c.Extensions = normalizeExtensions(c.Extensions)
	for _, h := range c.Headers {
		if name, _, ok := strings.Cut(h, ":"); !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", h)
		}
	}
	if c.Proxy != "" {
		if _, err := url.Parse(c.Proxy); err != nil {
			return nil, fmt.Errorf("invalid proxy: %w", err)
		}
	}
	return warnings, nil
}

// NormalizeTarget requires an absolute http(s) origin and strips trailing slashes.
func NormalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoTarget
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q needs an http:// or https:// scheme and a host", ErrInvalidTarget, raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

// SplitList splits a comma separated flag value, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimLeft(strings.TrimSpace(e), ".")
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// NewFastHTTPClient builds the shared connection pool. Redirects are never
// followed and fasthttp's own idempotent retries are off; retrying belongs
// to the prober.
func NewFastHTTPClient(cfg *Config) (*fasthttp.Client, error) {
	dialer := &fasthttp.TCPDialer{
		Concurrency:      cfg.MaxConns,
		DNSCacheDuration: cfg.DNSCacheTTL,
	}
	dial := func(addr string) (net.Conn, error) {
		return dialer.DialTimeout(addr, cfg.ConnectTimeout)
	}
	if cfg.Proxy != "" {
		proxyDial, err := internal.FasthttpHTTPDialer(cfg.Proxy, cfg.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		dial = proxyDial
	}

	return &fasthttp.Client{
		Dial:                      dial,
		ReadTimeout:               cfg.Timeout,
		WriteTimeout:              cfg.Timeout,
		MaxConnsPerHost:           cfg.MaxConns,
		MaxConnWaitTimeout:        cfg.Timeout,
		MaxResponseBodySize:       cfg.MaxBodySize,
		MaxIdemponentCallAttempts: 1,
		RetryIf:                   func(*fasthttp.Request) bool { return false },
		NoDefaultUserAgentHeader:  true,
		DisablePathNormalizing:    true,
		TLSConfig: &tls.Config{
			InsecureSkipVerify: cfg.NoTLS,
		},
	}, nil
}
