package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dionebr/pathprobe/scanner"
	"github.com/dionebr/pathprobe/utils"
)

// MaxListed caps the URLs printed in the summary.
const MaxListed = 20

// RenderHit formats one hit for the terminal. Size and technologies are only
// shown for 200 responses.
func RenderHit(h scanner.Hit) string {
	status := paint(StatusStyle(h.Status), fmt.Sprintf("[%d]", h.Status))
	switch {
	case h.IsRedirect():
		return fmt.Sprintf("%s %s -> %s", status, h.URL, paint(InfoStyle, h.Location))
	case h.Status == 200:
		line := fmt.Sprintf("%s %s %s", status, h.URL, paint(InfoStyle, fmt.Sprintf("(%d bytes)", h.Size)))
		if len(h.Tech) > 0 {
			line += " " + paint(HeaderStyle, "["+strings.Join(h.Tech, ", ")+"]")
		}
		return line
	default:
		return fmt.Sprintf("%s %s", status, h.URL)
	}
}

func RenderBanner(version string) string {
	return paint(BannerStyle, "pathprobe "+version+"\nrate-limited path discovery") + "\n"
}

// RenderHeader describes the run about to start.
func RenderHeader(cfg *utils.Config, payloads int) string {
	var b strings.Builder
	row := func(label string, value interface{}) {
		fmt.Fprintf(&b, "  %s %v\n", paint(HeaderStyle, fmt.Sprintf("%-14s", label+":")), value)
	}
	row("Target", cfg.URL)
	row("Payloads", payloads)
	row("Max rate", fmt.Sprintf("%g req/s", cfg.Rate))
	row("Threads", cfg.Threads)
	row("Timeout", cfg.Timeout)
	row("Retries", cfg.Retries)
	if cfg.StopOnErrors > 0 {
		row("Stop after", fmt.Sprintf("%d consecutive errors", cfg.StopOnErrors))
	} else {
		row("Stop after", "disabled")
	}
	if cfg.Proxy != "" {
		row("Proxy", cfg.Proxy)
	}
	if cfg.Output != "" {
		row("Output", cfg.Output)
	}
	b.WriteString(paint(WarnStyle, fmt.Sprintf("  Safe mode: request rate is capped at %d req/s", utils.MaxRate)))
	b.WriteString("\n")
	return b.String()
}

// RenderSummary formats the final report. It is printed for completed,
// stopped and interrupted runs alike.
func RenderSummary(s scanner.Summary) string {
	var b strings.Builder
	row := func(label string, value interface{}) {
		fmt.Fprintf(&b, "  %-16s %v\n", label+":", value)
	}

	b.WriteString(paint(HeaderStyle, "Scan summary"))
	b.WriteString("\n")
	if s.Target != "" {
		row("Target", s.Target)
	}
	row("Duration", s.Elapsed.Round(10*time.Millisecond))
	row("Average rate", fmt.Sprintf("%.2f req/s", s.Rate()))
	row("Completed", fmt.Sprintf("%d/%d", s.Stats.Total, s.Planned))
	row("200 OK", s.Stats.OK)
	row("403 Forbidden", s.Stats.Forbidden)
	row("Redirects", s.Stats.Redirects)
	row("404 Not Found", s.Stats.NotFound)
	row("Errors", s.Stats.Errors)
	if s.Stats.Other > 0 {
		row("Other status", s.Stats.Other)
	}
	if s.Stats.Anomalies > 0 {
		row("Anomalies", s.Stats.Anomalies)
	}
	if s.Stats.Skipped > 0 {
		row("Skipped", s.Stats.Skipped)
	}
	if s.Stopped() {
		fmt.Fprintf(&b, "  %s\n", paint(ErrorStyle, "Stopped: "+s.StopReason))
	}

	found := fmt.Sprintf("Total found: %d", len(s.Found))
	if len(s.Found) > 0 {
		found = paint(SuccessStyle, found)
	}
	b.WriteString("  " + found + "\n")
	for i, h := range s.Found {
		if i == MaxListed {
			fmt.Fprintf(&b, "    ... and %d more\n", len(s.Found)-MaxListed)
			break
		}
		b.WriteString("    " + RenderHit(h) + "\n")
	}
	return b.String()
}
