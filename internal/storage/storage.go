// Package storage defines export sinks for finished sessions. Backends only
// ever write; sessions are never loaded back as live state.
package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/FranksOps/qparser/internal/session"
)

// Backend exports sessions as they are published.
type Backend interface {
	Save(ctx context.Context, s *session.Session) error
	Close() error
}

// AnalysisUpdater is implemented by backends that can add an analysis to a
// session they already stored.
type AnalysisUpdater interface {
	SaveAnalysis(ctx context.Context, id, analysis string) error
}

// Format names an export backend.
type Format string

const (
	FormatNone     Format = "none"
	FormatTXT      Format = "txt"
	FormatCSV      Format = "csv"
	FormatNDJSON   Format = "ndjson"
	FormatXLSX     Format = "xlsx"
	FormatSQLite   Format = "sqlite"
	FormatPostgres Format = "postgres"
)

// Formats lists every supported format.
var Formats = []Format{FormatNone, FormatTXT, FormatCSV, FormatNDJSON, FormatXLSX, FormatSQLite, FormatPostgres}

// ParseFormat resolves a format name; "json" is accepted for ndjson and an
// empty name means FormatNone.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case "":
		return FormatNone, nil
	case "json":
		return FormatNDJSON, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("storage: unknown export format %q", s)
}

// ReadQueries reads a plain line list of queries, trimming whitespace and
// dropping blank lines.
func ReadQueries(r io.Reader) ([]string, error) {
	var queries []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			queries = append(queries, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("storage: read queries: %w", err)
	}
	return queries, nil
}
