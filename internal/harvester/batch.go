package harvester

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/FranksOps/qparser/internal/metrics"
	"github.com/FranksOps/qparser/internal/serp"
	"github.com/FranksOps/qparser/internal/session"
	"github.com/FranksOps/qparser/pkg/retry"
	"golang.org/x/sync/errgroup"
)

// Runner executes a single query. *Task implements it.
type Runner interface {
	Run(ctx context.Context, query string) (*session.Session, error)
}

// Progress is a snapshot of a running batch.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Done reports whether every query has finished.
func (p Progress) Done() bool { return p.Completed == p.Total }

// Skip records a query that failed permanently.
type Skip struct {
	Query string
	Err   error
}

// Outcome summarizes a batch run.
type Outcome struct {
	Total     int
	Completed int
	// Sessions are in completion order.
	Sessions []*session.Session
	Skipped  []Skip
	// Retried counts queries that needed the scheduler-level retry.
	Retried int
	// Pending holds queries never claimed because the batch was cancelled.
	Pending    []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// BatchConfig configures a Scheduler.
type BatchConfig struct {
	// Concurrency is the number of workers (default 4).
	Concurrency int
	// TaskRetryDelay is the wait before the single scheduler-level retry (default 3s).
	TaskRetryDelay time.Duration
	// Stagger delays worker i's start by i*Stagger.
	Stagger time.Duration
	// OnProgress receives Completed 0 when the batch starts, then every
	// change, one call at a time, with Completed strictly increasing. It
	// should return quickly.
	OnProgress func(Progress)
	// Sleep overrides the ctx-aware wait used for stagger and retry delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Scheduler fans a list of queries out to a fixed pool of workers.
type Scheduler struct {
	task   Runner
	cfg    BatchConfig
	logger *slog.Logger
}

// NewScheduler creates a Scheduler around task.
func NewScheduler(task Runner, cfg BatchConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.TaskRetryDelay == 0 {
		cfg.TaskRetryDelay = 3 * time.Second
	}
	if cfg.Sleep == nil {
		cfg.Sleep = retry.Sleep
	}
	return &Scheduler{task: task, cfg: cfg, logger: logger}
}

// tracker owns the outcome and the progress counter shared by workers.
type tracker struct {
	mu         sync.Mutex
	out        *Outcome
	onProgress func(Progress)
}

func (tr *tracker) record(s *session.Session, skip *Skip, retried bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if s != nil {
		tr.out.Sessions = append(tr.out.Sessions, s)
	}
	if skip != nil {
		tr.out.Skipped = append(tr.out.Skipped, *skip)
	}
	if retried {
		tr.out.Retried++
	}
	tr.out.Completed++
	tr.emit()
}

// emit publishes the current progress. Callers hold mu.
func (tr *tracker) emit() {
	metrics.BatchCompleted.Set(float64(tr.out.Completed))
	if tr.onProgress != nil {
		tr.onProgress(Progress{Completed: tr.out.Completed, Total: tr.out.Total})
	}
}

// Run processes queries and blocks until every claimed query has finished.
// Individual failures never fail the batch; the only error returned is the
// context's, together with the partial outcome.
func (s *Scheduler) Run(ctx context.Context, queries []string) (*Outcome, error) {
	out := &Outcome{Total: len(queries), StartedAt: time.Now().UTC()}
	if len(queries) == 0 {
		out.FinishedAt = out.StartedAt
		return out, nil
	}

	queue := newWorkQueue(queries)
	tr := &tracker{out: out, onProgress: s.cfg.OnProgress}
	workers := min(s.cfg.Concurrency, len(queries))

	metrics.BatchTotal.Set(float64(len(queries)))
	s.logger.Info("batch start", "queries", len(queries), "workers", workers)
	tr.mu.Lock()
	tr.emit()
	tr.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range workers {
		g.Go(func() error {
			return s.work(gctx, i, queue, tr)
		})
	}
	err := g.Wait()

	out.Pending = queue.drain()
	out.FinishedAt = time.Now().UTC()
	s.logger.Info("batch finished",
		"completed", out.Completed,
		"total", out.Total,
		"sessions", len(out.Sessions),
		"skipped", len(out.Skipped),
		"pending", len(out.Pending),
		"took", out.FinishedAt.Sub(out.StartedAt).Round(time.Millisecond),
	)

	if err == nil {
		err = ctx.Err()
	}
	return out, err
}

// work claims queries until the queue is empty. It returns the context error
// when the batch is cancelled first.
func (s *Scheduler) work(ctx context.Context, id int, queue *workQueue, tr *tracker) error {
	if id > 0 && s.cfg.Stagger > 0 {
		if err := s.cfg.Sleep(ctx, time.Duration(id)*s.cfg.Stagger); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		query, ok := queue.claim()
		if !ok {
			return nil
		}
		s.process(ctx, query, tr)
	}
}

func (s *Scheduler) process(ctx context.Context, query string, tr *tracker) {
	sess, err := s.task.Run(ctx, query)

	retried := false
	if err != nil && serp.IsRecoverable(err) {
		retried = true
		metrics.RetriesTotal.WithLabelValues(metrics.LayerTask).Inc()
		s.logger.Warn("query throttled, retrying once", "query", query, "delay", s.cfg.TaskRetryDelay)
		if serr := s.cfg.Sleep(ctx, s.cfg.TaskRetryDelay); serr != nil {
			err = serr
		} else {
			sess, err = s.task.Run(ctx, query)
		}
	}

	if err != nil {
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		s.logger.Error("query skipped", "query", query, "recoverable", serp.IsRecoverable(err), "err", err)
		tr.record(nil, &Skip{Query: query, Err: err}, retried)
		return
	}

	if retried {
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeRetried).Inc()
	} else {
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	}
	tr.record(sess, nil, retried)
}
