// Package testutil provides logging helpers for package tests.
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	logger, _ := NewRecordingLogger(t)
	return logger
}

// Records collects the messages logged through a recording logger.
type Records struct {
	mu      sync.Mutex
	entries []Entry
}

// Entry is one logged message.
type Entry struct {
	Level   slog.Level
	Message string
}

// Messages returns the messages logged at level, in order.
func (r *Records) Messages(level slog.Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// NewRecordingLogger returns a debug-level logger that writes to t.Log()
// and keeps every message for assertions.
func NewRecordingLogger(t testing.TB) (*slog.Logger, *Records) {
	t.Helper()
	rec := &Records{}
	text := slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(&recordingHandler{Handler: text, records: rec}), rec
}

type recordingHandler struct {
	slog.Handler
	records *Records
}

func (h *recordingHandler) Handle(ctx context.Context, r slog.Record) error {
	h.records.mu.Lock()
	h.records.entries = append(h.records.entries, Entry{Level: r.Level, Message: r.Message})
	h.records.mu.Unlock()
	return h.Handler.Handle(ctx, r)
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordingHandler{Handler: h.Handler.WithAttrs(attrs), records: h.records}
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	return &recordingHandler{Handler: h.Handler.WithGroup(name), records: h.records}
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
