package serp

import (
	"context"
	"fmt"
)

// RawItem is one link as returned by a provider, before normalization.
type RawItem struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// Provider abstracts a remote search call: query text in, raw links out.
// Implementations report rate limiting through errors that Classify
// recognises as Recoverable.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]RawItem, error)
}

// StatusError is returned by HTTP-backed providers when the remote answered
// with a non-success status or a bot challenge page.
type StatusError struct {
	Provider   string
	StatusCode int
	// Challenge names the bot protection that served the page, if any.
	Challenge string
}

func (e *StatusError) Error() string {
	if e.Challenge != "" {
		return fmt.Sprintf("serp: %s: %s challenge (status %d)", e.Provider, e.Challenge, e.StatusCode)
	}
	return fmt.Sprintf("serp: %s: unexpected status %d", e.Provider, e.StatusCode)
}

// FetchError is returned by HTTP-backed providers when the request failed
// before a status was read. Reason may contain the request URL.
type FetchError struct {
	Provider string
	Reason   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("serp: %s: %s", e.Provider, e.Reason)
}
