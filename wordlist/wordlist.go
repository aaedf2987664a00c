// Package wordlist loads candidate words from disk and builds target-aware
// lists for generate mode.
package wordlist

import (
	"bufio"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"strings"
)

// Load reads one word per line. Surrounding whitespace is trimmed and blank
// lines are dropped; order is preserved.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wordlist: %w", err)
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			words = append(words, w)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read wordlist: %w", err)
	}
	return words, nil
}

// Limit keeps a random sample of n words. A non-positive n, or one not
// smaller than the list, returns words untouched.
func Limit(words []string, n int, rng *rand.Rand) []string {
	if n <= 0 || n >= len(words) {
		return words
	}
	out := make([]string, len(words))
	copy(out, words)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out[:n]
}

var (
	cores = []string{
		"error_log", "debug", "backup", "test", "temp",
		"config", "conf", "settings", ".env",
		"admin", "administrator", "cpanel", "dashboard",
		"api", "v1", "v2", "graphql", "rest",
		"dev", "staging", "test", "demo",
		"db", "database", "sql", "dump",
		"old", "bak", "backup", "save",
	}
	years      = []string{"2024", "2025", "2026"}
	separators = []string{"", "-", "_", "."}
	modifiers  = []string{"bak", "old", "new", "temp", "save", "copy", "zip", "rar"}
)

// Generate builds a deduplicated list from the target's domain label and a
// fixed set of sensitive path cores, shuffles it and applies limit.
func Generate(target string, limit int, rng *rand.Rand) []string {
	label := DomainLabel(target)

	seen := make(map[string]struct{})
	var out []string
	add := func(w string) {
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}

	for _, c := range cores {
		add(c)
	}
	add(label)
	for _, c := range cores[:10] {
		for _, y := range years {
			add(c + y)
			add(c + "-" + y)
		}
	}
	for _, c := range cores[:15] {
		for _, sep := range separators {
			for _, m := range modifiers[:5] {
				add(c + sep + m)
			}
		}
	}
	for _, c := range cores[:10] {
		add(label + "_" + c)
		add(label + "-" + c)
	}

	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// DomainLabel is the first host label that is not "www", or "site" when the
// target has no usable host.
func DomainLabel(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "site"
	}
	for _, part := range strings.Split(u.Hostname(), ".") {
		if part != "" && part != "www" {
			return part
		}
	}
	return "site"
}
