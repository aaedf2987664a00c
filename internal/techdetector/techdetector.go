package techdetector

import (
	"sort"

	wapp "github.com/projectdiscovery/wappalyzergo"
)

// Engine is a small wrapper around the external detection engine.
// This package hides the third-party package name from the rest of the codebase.
type Engine struct {
	eng *wapp.Wappalyze
}

// New loads the bundled fingerprint database.
func New() (*Engine, error) {
	eng, err := wapp.New()
	if err != nil {
		return nil, err
	}
	return &Engine{eng: eng}, nil
}

// Technologies returns the detected technology names in sorted order,
// or nil when nothing matched.
func (e *Engine) Technologies(headers map[string][]string, body []byte) []string {
	found := e.eng.Fingerprint(headers, body)
	if len(found) == 0 {
		return nil
	}
	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
