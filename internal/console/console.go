// Package console keeps a bounded window of recent log entries for display
// at the end of a run.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultSize is the number of entries kept when no size is given.
const DefaultSize = 25

// Entry is one retained log record.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
}

// Window is a fixed-size ring of recent entries, safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewWindow returns a window holding up to size entries.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultSize
	}
	return &Window{entries: make([]Entry, size)}
}

func (w *Window) add(e Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[w.next] = e
	w.next = (w.next + 1) % len(w.entries)
	if w.next == 0 {
		w.full = true
	}
}

// Entries returns the retained entries, oldest first.
func (w *Window) Entries() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.full {
		return append([]Entry(nil), w.entries[:w.next]...)
	}
	out := make([]Entry, 0, len(w.entries))
	out = append(out, w.entries[w.next:]...)
	return append(out, w.entries[:w.next]...)
}

// WriteTo prints the entries one per line.
func (w *Window) WriteTo(out io.Writer) (int64, error) {
	var n int64
	for _, e := range w.Entries() {
		c, err := fmt.Fprintf(out, "%s %-5s %s\n", e.Time.Format("15:04:05"), e.Level, e.Message)
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Handler forwards records to an inner handler and copies those at or above
// the window level into a Window.
type Handler struct {
	inner  slog.Handler
	window *Window
	level  slog.Leveler
}

// NewHandler wraps inner. Records below level are not retained in window;
// level nil means slog.LevelInfo.
func NewHandler(inner slog.Handler, window *Window, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{inner: inner, window: window, level: level}
}

func (h *Handler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l) || l >= h.level.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() {
		h.window.add(Entry{Time: r.Time, Level: r.Level, Message: r.Message})
	}
	if !h.inner.Enabled(ctx, r.Level) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs), window: h.window, level: h.level}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name), window: h.window, level: h.level}
}
