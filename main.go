package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dionebr/pathprobe/internal/techdetector"
	"github.com/dionebr/pathprobe/scanner"
	"github.com/dionebr/pathprobe/ui"
	"github.com/dionebr/pathprobe/utils"
	"github.com/dionebr/pathprobe/wordlist"
)

const version = "1.0.0"

type arguments struct {
	URL            *string        `arg:"-u,--url" help:"target origin, e.g. https://example.com" placeholder:"URL"`
	Wordlist       *string        `arg:"-w,--wordlist" help:"file with one path per line" placeholder:"FILE"`
	Generate       bool           `arg:"--generate" help:"build a wordlist from the target's domain"`
	Limit          *int           `arg:"-l,--limit" help:"keep a random sample of this many words (0 = all)"`
	Extensions     *string        `arg:"-e,--extensions" help:"comma separated extensions to append, e.g. php,bak" placeholder:"LIST"`
	Rate           *float64       `arg:"-r,--rate" help:"maximum requests per second (capped at 100)"`
	Threads        *int           `arg:"-t,--threads" help:"maximum concurrent probes"`
	Timeout        *time.Duration `arg:"--timeout" help:"per-request timeout"`
	ConnectTimeout *time.Duration `arg:"--connect-timeout" help:"TCP connect timeout"`
	Retries        *int           `arg:"--retries" help:"retries for network errors"`
	StopOnErrors   *int           `arg:"--stop-on-errors" help:"abort after this many consecutive errors (0 = never)"`
	Output         *string        `arg:"-o,--output" help:"append hits to this file" placeholder:"FILE"`
	Headers        []string       `arg:"--header,-H,separate" help:"extra header \"Name: value\" (repeatable)"`
	Proxy          *string        `arg:"--proxy" help:"HTTP proxy, e.g. http://127.0.0.1:8080" placeholder:"URL"`
	Config         string         `arg:"-c,--config" help:"YAML config file; flags override its values" placeholder:"FILE"`
	Fingerprint    bool           `arg:"--fingerprint" help:"detect technologies on 200 responses"`
	Seed           *int64         `arg:"--seed" help:"seed for shuffling and user-agent choice"`
	Verbose        bool           `arg:"-v,--verbose" help:"progress bar and per-request errors"`
	TUI            bool           `arg:"--tui" help:"live full-screen view"`
	NoColor        bool           `arg:"--no-color" help:"disable colored output"`
}

func (arguments) Version() string {
	return "pathprobe " + version
}

func (arguments) Description() string {
	return "Rate-limited web path discovery for authorized testing."
}

func main() {
	var args arguments
	arg.MustParse(&args)
	os.Exit(run(args))
}

func run(args arguments) int {
	cfg := utils.DefaultConfig()
	if args.Config != "" {
		if err := utils.LoadFile(args.Config, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
	}
	applyArgs(cfg, args)

	log := utils.NewLogger(os.Stderr, cfg.Verbose, cfg.NoColor)
	ui.SetPlain(cfg.NoColor)

	warnings, err := cfg.Validate()
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return 1
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	entry := log.WithFields(logrus.Fields{
		"run":    uuid.New().String(),
		"target": cfg.URL,
	})

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	words, err := buildWords(cfg, rng, entry)
	if err != nil {
		entry.WithError(err).Error("cannot build wordlist")
		return 1
	}
	payloads := scanner.Expand(words, cfg.Extensions)
	if len(payloads) == 0 {
		entry.Error("no payloads to probe")
		return 1
	}

	client, err := utils.NewFastHTTPClient(cfg)
	if err != nil {
		entry.WithError(err).Error("cannot build http client")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []scanner.Option{scanner.WithLogger(entry)}
	if cfg.Output != "" {
		sink, err := scanner.OpenFileSink(cfg.Output)
		if err != nil {
			entry.WithError(err).Error("cannot open output file")
			return 1
		}
		defer sink.Close()
		opts = append(opts, scanner.WithSink(sink))
	}
	if cfg.Fingerprint {
		det, err := techdetector.New()
		if err != nil {
			entry.WithError(err).Warn("fingerprinting disabled")
		} else {
			opts = append(opts, scanner.WithDetector(det))
		}
	}

	if !cfg.TUI {
		fmt.Print(ui.RenderBanner(version))
		fmt.Print(ui.RenderHeader(cfg, len(payloads)))
		fmt.Println()
	}

	var summary scanner.Summary
	if cfg.TUI {
		summary, err = runLive(ctx, cfg, client, payloads, opts, entry)
	} else {
		summary, err = runConsole(ctx, cfg, client, payloads, opts)
	}
	if err != nil {
		entry.WithError(err).Error("scan failed")
	}

	fmt.Println()
	fmt.Print(ui.RenderSummary(summary))
	if err != nil {
		return 1
	}
	return 0
}

func runConsole(ctx context.Context, cfg *utils.Config, client scanner.Doer, payloads []string, opts []scanner.Option) (scanner.Summary, error) {
	var progress io.Writer
	if cfg.Verbose {
		progress = os.Stderr
	}
	var engine *scanner.Engine
	console := ui.NewConsole(os.Stdout, progress, len(payloads), func() float64 {
		return engine.Governor().CurrentRate()
	})
	engine = scanner.NewEngine(cfg, client, append(opts, scanner.WithListener(console))...)
	summary, err := engine.Run(ctx, payloads)
	console.Finish()
	return summary, err
}

// runLive drives the scan from a goroutine while the bubbletea program owns
// the terminal. Quitting the view cancels the scan, which still reports.
func runLive(ctx context.Context, cfg *utils.Config, client scanner.Doer, payloads []string, opts []scanner.Option, log *logrus.Entry) (scanner.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var engine *scanner.Engine
	live := ui.NewLive(cfg.URL, len(payloads), func() float64 {
		return engine.Governor().CurrentRate()
	}, cancel)
	engine = scanner.NewEngine(cfg, client, append(opts, scanner.WithListener(live))...)

	// the view owns the terminal until it exits
	log.Logger.SetOutput(live)

	type result struct {
		summary scanner.Summary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := engine.Run(ctx, payloads)
		live.Finish(s)
		done <- result{s, err}
	}()

	runErr := live.Run()
	log.Logger.SetOutput(os.Stderr)
	if runErr != nil {
		log.WithError(runErr).Warn("live view failed, waiting for the scan to stop")
		cancel()
	}
	r := <-done
	return r.summary, r.err
}

func buildWords(cfg *utils.Config, rng *rand.Rand, log *logrus.Entry) ([]string, error) {
	if cfg.Generate {
		words := wordlist.Generate(cfg.URL, cfg.Limit, rng)
		log.WithField("words", len(words)).Info("generated wordlist")
		return words, nil
	}
	words, err := wordlist.Load(cfg.Wordlist)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("wordlist %s is empty", cfg.Wordlist)
	}
	if cfg.Limit > 0 && cfg.Limit < len(words) {
		log.WithField("limit", cfg.Limit).Infof("sampling %d of %d words", cfg.Limit, len(words))
	}
	return wordlist.Limit(words, cfg.Limit, rng), nil
}

func applyArgs(cfg *utils.Config, a arguments) {
	if a.URL != nil {
		cfg.URL = *a.URL
	}
	if a.Wordlist != nil {
		cfg.Wordlist = *a.Wordlist
	}
	if a.Generate {
		cfg.Generate = true
	}
	if a.Limit != nil {
		cfg.Limit = *a.Limit
	}
	if a.Extensions != nil {
		cfg.Extensions = utils.SplitList(*a.Extensions)
	}
	if a.Rate != nil {
		cfg.Rate = *a.Rate
	}
	if a.Threads != nil {
		cfg.Threads = *a.Threads
	}
	if a.Timeout != nil {
		cfg.Timeout = *a.Timeout
	}
	if a.ConnectTimeout != nil {
		cfg.ConnectTimeout = *a.ConnectTimeout
	}
	if a.Retries != nil {
		cfg.Retries = *a.Retries
	}
	if a.StopOnErrors != nil {
		cfg.StopOnErrors = *a.StopOnErrors
	}
	if a.Output != nil {
		cfg.Output = *a.Output
	}
	if len(a.Headers) > 0 {
		cfg.Headers = append(cfg.Headers, a.Headers...)
	}
	if a.Proxy != nil {
		cfg.Proxy = *a.Proxy
	}
	if a.Seed != nil {
		cfg.Seed = *a.Seed
	}
	cfg.Fingerprint = cfg.Fingerprint || a.Fingerprint
	cfg.Verbose = cfg.Verbose || a.Verbose
	cfg.TUI = cfg.TUI || a.TUI
	cfg.NoColor = cfg.NoColor || a.NoColor
}
