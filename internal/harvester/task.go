package harvester

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/qparser/internal/enrich"
	"github.com/FranksOps/qparser/internal/metrics"
	"github.com/FranksOps/qparser/internal/serp"
	"github.com/FranksOps/qparser/internal/session"
	"github.com/FranksOps/qparser/pkg/ratelimit"
	"github.com/FranksOps/qparser/pkg/retry"
	"golang.org/x/sync/semaphore"
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("harvester: empty query")

// TaskConfig configures a Task.
type TaskConfig struct {
	Provider serp.Provider
	// Enricher is optional; nil disables the analysis pass.
	Enricher enrich.Enricher
	Sink     Sink
	// Retry governs call-level retries. A nil Retryable is replaced by serp.IsRecoverable.
	Retry retry.Policy
	// Limiter paces every remote call attempt.
	Limiter *ratelimit.Limiter
	// CallTimeout bounds a single remote call attempt (default 60s).
	CallTimeout time.Duration
	// EnrichMaxURIs caps the URIs handed to the enricher (default 10).
	EnrichMaxURIs int
	// EnrichTimeout bounds one enrichment call (default 60s).
	EnrichTimeout time.Duration
	// EnrichConcurrency caps concurrent enrichment calls (default 2).
	EnrichConcurrency int64
	Now               func() time.Time
}

// Task runs one query: remote call with retries, aggregation, publication
// and a detached enrichment pass.
type Task struct {
	cfg    TaskConfig
	logger *slog.Logger
	sem    *semaphore.Weighted

	wg    sync.WaitGroup
	base  context.Context
	abort context.CancelFunc
}

// NewTask creates a Task. It panics if cfg.Provider or cfg.Sink is nil.
func NewTask(cfg TaskConfig, logger *slog.Logger) *Task {
	if cfg.Provider == nil || cfg.Sink == nil {
		panic("harvester: task needs a provider and a sink")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = retry.DefaultMaxAttempts
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = serp.IsRecoverable
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.EnrichMaxURIs <= 0 {
		cfg.EnrichMaxURIs = 10
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = 60 * time.Second
	}
	if cfg.EnrichConcurrency <= 0 {
		cfg.EnrichConcurrency = 2
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	onRetry := cfg.Retry.OnRetry
	cfg.Retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.RetriesTotal.WithLabelValues(metrics.LayerCall).Inc()
		logger.Warn("remote call throttled, backing off", "provider", cfg.Provider.Name(), "attempt", attempt, "delay", delay.Round(time.Millisecond), "err", err)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}

	base, abort := context.WithCancel(context.Background())
	return &Task{
		cfg:    cfg,
		logger: logger,
		sem:    semaphore.NewWeighted(cfg.EnrichConcurrency),
		base:   base,
		abort:  abort,
	}
}

// Run executes query and returns the published session. The error is the
// terminal error of the remote call.
func (t *Task) Run(ctx context.Context, query string) (*session.Session, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}

	start := t.cfg.Now()
	t.logger.Debug("task start", "query", q)

	items, err := retry.Do(ctx, t.cfg.Retry, func(ctx context.Context) ([]serp.RawItem, error) {
		if err := t.cfg.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
		callCtx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
		defer cancel()
		return t.cfg.Provider.Search(callCtx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("harvester: query %q: %w", q, err)
	}

	results, stats := serp.Aggregate(items)
	s := session.New(q, results, stats, t.cfg.Now())
	metrics.RecordSession(s, t.cfg.Now().Sub(start))

	t.cfg.Sink.Publish(s)
	t.logger.Info("task complete", "query", q, "session", s.ID, "results", len(results), "domains", len(stats))

	if len(results) > 0 && t.cfg.Enricher != nil {
		t.startEnrichment(ctx, s.ID, q, s.URIs(t.cfg.EnrichMaxURIs))
	}
	return s, nil
}

// startEnrichment runs the enricher in the background. It outlives ctx's
// cancellation but not Wait's.
func (t *Task) startEnrichment(ctx context.Context, id, query string, uris []string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.EnrichTimeout)
		defer cancel()
		stop := context.AfterFunc(t.base, cancel)
		defer stop()

		if err := t.sem.Acquire(ectx, 1); err != nil {
			metrics.EnrichmentsTotal.WithLabelValues("abandoned").Inc()
			return
		}
		defer t.sem.Release(1)

		analysis, err := t.cfg.Enricher.Enrich(ectx, query, uris)
		switch {
		case err != nil:
			metrics.EnrichmentsTotal.WithLabelValues("failed").Inc()
			t.logger.Debug("enrichment failed", "session", id, "err", err)
		case strings.TrimSpace(analysis) == "":
			metrics.EnrichmentsTotal.WithLabelValues("empty").Inc()
		case t.cfg.Sink.AttachAnalysis(id, analysis):
			metrics.EnrichmentsTotal.WithLabelValues("attached").Inc()
			t.logger.Debug("analysis attached", "session", id)
		}
	}()
}

// Wait blocks until background enrichments finish. If ctx ends first the
// remaining enrichments are cancelled and ctx's error is returned once they
// have returned.
func (t *Task) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.abort()
		<-done
		return ctx.Err()
	}
}
