package harvester

import (
	"context"
	"log/slog"
	"time"

	"github.com/FranksOps/qparser/internal/session"
	"github.com/FranksOps/qparser/internal/storage"
)

// Sink receives sessions as soon as they are built and the analysis that
// may follow later.
type Sink interface {
	Publish(s *session.Session)
	// AttachAnalysis sets the analysis of a published session. It reports
	// whether the session was found and had no analysis yet.
	AttachAnalysis(id, analysis string) bool
}

var _ Sink = (*session.Store)(nil)

// MultiSink fans every call out to each sink in order.
type MultiSink []Sink

func (m MultiSink) Publish(s *session.Session) {
	for _, sink := range m {
		sink.Publish(s)
	}
}

func (m MultiSink) AttachAnalysis(id, analysis string) bool {
	attached := false
	for _, sink := range m {
		if sink.AttachAnalysis(id, analysis) {
			attached = true
		}
	}
	return attached
}

// ExportSink writes published sessions to a storage backend. Export failures
// are logged and never reach the task.
type ExportSink struct {
	Backend storage.Backend
	Logger  *slog.Logger
	// Timeout bounds each backend call (default 10s).
	Timeout time.Duration
}

func (e *ExportSink) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *ExportSink) ctx() (context.Context, context.CancelFunc) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (e *ExportSink) Publish(s *session.Session) {
	ctx, cancel := e.ctx()
	defer cancel()
	if err := e.Backend.Save(ctx, s); err != nil {
		e.logger().Error("failed to export session", "session", s.ID, "err", err)
	}
}

// AttachAnalysis forwards to backends that can update stored sessions.
func (e *ExportSink) AttachAnalysis(id, analysis string) bool {
	u, ok := e.Backend.(storage.AnalysisUpdater)
	if !ok {
		return false
	}
	ctx, cancel := e.ctx()
	defer cancel()
	if err := u.SaveAnalysis(ctx, id, analysis); err != nil {
		e.logger().Error("failed to export analysis", "session", id, "err", err)
		return false
	}
	return true
}
