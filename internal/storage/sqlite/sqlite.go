package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/qparser/internal/session"
	"github.com/FranksOps/qparser/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var (
	_ storage.Backend         = (*sqliteBackend)(nil)
	_ storage.AnalysisUpdater = (*sqliteBackend)(nil)
)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	result_count INTEGER NOT NULL,
	analysis TEXT
);
CREATE TABLE IF NOT EXISTS results (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	uri TEXT NOT NULL,
	title TEXT NOT NULL,
	domain TEXT NOT NULL,
	snippet TEXT,
	PRIMARY KEY (session_id, position)
);
CREATE TABLE IF NOT EXISTS domain_stats (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	domain TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY (session_id, domain)
);
`

// New opens (or creates) a SQLite database at dsn for session export.
// Writes from batch workers and enrichment share one connection; SQLite
// allows a single writer and the driver does not queue competing ones.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, s *session.Session) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, query, created_at, result_count, analysis) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Query, s.CreatedAt.UTC(), len(s.Results), nullable(s.Analysis),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert session: %w", err)
	}

	for i, r := range s.Results {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO results (session_id, position, uri, title, domain, snippet) VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, i, r.URI, r.Title, r.Domain, r.Snippet,
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert result: %w", err)
		}
	}

	for _, st := range s.DomainStats {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO domain_stats (session_id, domain, count) VALUES (?, ?, ?)`,
			s.ID, st.Domain, st.Count,
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert domain stat: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// SaveAnalysis sets the analysis of a stored session that has none yet.
func (b *sqliteBackend) SaveAnalysis(ctx context.Context, id, analysis string) error {
	res, err := b.db.ExecContext(ctx,
		`UPDATE sessions SET analysis = ? WHERE id = ? AND analysis IS NULL`, analysis, id)
	if err != nil {
		return fmt.Errorf("sqlite: update analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: session %s not found or already analysed", id)
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
