package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/qparser/internal/session"
	"github.com/FranksOps/qparser/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var (
	_ storage.Backend         = (*postgresBackend)(nil)
	_ storage.AnalysisUpdater = (*postgresBackend)(nil)
)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS qparser_sessions (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	result_count INTEGER NOT NULL,
	analysis TEXT
);
CREATE TABLE IF NOT EXISTS qparser_results (
	session_id TEXT NOT NULL REFERENCES qparser_sessions(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	uri TEXT NOT NULL,
	title TEXT NOT NULL,
	domain TEXT NOT NULL,
	snippet TEXT,
	PRIMARY KEY (session_id, position)
);
CREATE TABLE IF NOT EXISTS qparser_domain_stats (
	session_id TEXT NOT NULL REFERENCES qparser_sessions(id) ON DELETE CASCADE,
	domain TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY (session_id, domain)
);
`

// New connects to Postgres at dsn and creates the export tables.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, s *session.Session) error {
	var analysis *string
	if s.Analysis != "" {
		analysis = &s.Analysis
	}

	batch := &pgx.Batch{}
	batch.Queue(
		`INSERT INTO qparser_sessions (id, query, created_at, result_count, analysis) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Query, s.CreatedAt, len(s.Results), analysis,
	)
	for i, r := range s.Results {
		batch.Queue(
			`INSERT INTO qparser_results (session_id, position, uri, title, domain, snippet) VALUES ($1, $2, $3, $4, $5, $6)`,
			s.ID, i, r.URI, r.Title, r.Domain, r.Snippet,
		)
	}
	for _, st := range s.DomainStats {
		batch.Queue(
			`INSERT INTO qparser_domain_stats (session_id, domain, count) VALUES ($1, $2, $3)`,
			s.ID, st.Domain, st.Count,
		)
	}

	err := pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("postgres: save session %s: %w", s.ID, err)
	}
	return nil
}

// SaveAnalysis sets the analysis of a stored session that has none yet.
func (b *postgresBackend) SaveAnalysis(ctx context.Context, id, analysis string) error {
	tag, err := b.pool.Exec(ctx,
		`UPDATE qparser_sessions SET analysis = $1 WHERE id = $2 AND analysis IS NULL`, analysis, id)
	if err != nil {
		return fmt.Errorf("postgres: update analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: session %s not found or already analysed", id)
	}
	return nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
