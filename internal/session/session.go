package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Result is a single deduplicated link discovered for a query.
type Result struct {
	Title   string `json:"title"`
	URI     string `json:"uri"`
	Domain  string `json:"domain"`
	Snippet string `json:"snippet,omitempty"`
}

// DomainStat counts the distinct result URIs observed for one domain.
type DomainStat struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// Session is the aggregated outcome of one query.
type Session struct {
	ID          string       `json:"id"`
	Query       string       `json:"query"`
	CreatedAt   time.Time    `json:"created_at"`
	Results     []Result     `json:"results"`
	DomainStats []DomainStat `json:"domain_stats"`
	// Analysis is filled in by the enrichment pass. Empty means absent.
	Analysis string `json:"analysis,omitempty"`
}

// NewID returns a session id of the form QP-<unix millis>-<8 hex chars>.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("QP-%d-%s", now.UnixMilli(), suffix)
}

// New builds a session for query with a fresh id.
func New(query string, results []Result, stats []DomainStat, now time.Time) *Session {
	return &Session{
		ID:          NewID(now),
		Query:       query,
		CreatedAt:   now.UTC(),
		Results:     results,
		DomainStats: stats,
	}
}

// URIs returns up to limit result URIs in discovery order. limit <= 0 returns all of them.
func (s *Session) URIs(limit int) []string {
	n := len(s.Results)
	if limit > 0 && limit < n {
		n = limit
	}
	uris := make([]string, 0, n)
	for _, r := range s.Results[:n] {
		uris = append(uris, r.URI)
	}
	return uris
}

// Clone returns a deep copy safe to hand to readers outside the store.
func (s *Session) Clone() *Session {
	c := *s
	c.Results = append([]Result(nil), s.Results...)
	c.DomainStats = append([]DomainStat(nil), s.DomainStats...)
	return &c
}
