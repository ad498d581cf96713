// Package rvlog wraps log/slog with the small text-line handler the
// host binary uses for fatal-error and trace reporting.
//
// Grounded on the teacher's util/logger.LogHandler: a mutex-guarded
// slog.Handler that writes a timestamp + level + message line to an
// optional file and mirrors warnings/errors to stderr.
package rvlog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler is a slog.Handler that renders a flat text line per record
// and fans it out to an optional log file plus stderr for warnings and
// above.
type Handler struct {
	out   io.Writer
	inner slog.Handler
	mu    *sync.Mutex
	trace bool
}

// NewHandler builds a Handler writing to file (nil disables file
// output). trace, when true, also mirrors Debug-level records (used for
// the -trace per-step log) to stderr.
func NewHandler(file io.Writer, opts *slog.HandlerOptions, trace bool) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{
		out:   file,
		inner: slog.NewTextHandler(file, opts),
		mu:    &sync.Mutex{},
		trace: trace,
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, inner: h.inner.WithAttrs(attrs), mu: h.mu, trace: h.trace}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, inner: h.inner.WithGroup(name), mu: h.mu, trace: h.trace}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	parts := []string{r.Time.Format("2006/01/02 15:04:05"), r.Level.String() + ":", r.Message}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, a.Key+"="+a.Value.String())
		return true
	})
	line := []byte(strings.Join(parts, " ") + "\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(line)
	}
	if r.Level >= slog.LevelWarn || (h.trace && r.Level == slog.LevelDebug) {
		_, err = os.Stderr.Write(line)
	}
	return err
}
