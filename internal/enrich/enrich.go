// Package enrich produces the best-effort analysis attached to a session
// after its results are published.
package enrich

import (
	"context"
	"strings"
)

// Enricher summarizes the result URIs of a query.
type Enricher interface {
	Enrich(ctx context.Context, query string, uris []string) (string, error)
}

// Func adapts an ordinary function to the Enricher interface.
type Func func(ctx context.Context, query string, uris []string) (string, error)

func (f Func) Enrich(ctx context.Context, query string, uris []string) (string, error) {
	return f(ctx, query, uris)
}

// Mode selects the enricher built from configuration.
type Mode string

const (
	ModeGemini Mode = "gemini"
	ModeProbe  Mode = "probe"
	ModeOff    Mode = "off"
)

// ParseMode resolves a mode name. Empty means ModeOff.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeOff, true
	case ModeGemini, ModeProbe, ModeOff:
		return m, true
	default:
		return "", false
	}
}
