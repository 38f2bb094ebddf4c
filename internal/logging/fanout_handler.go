package logging

import (
	"context"
	"log/slog"
)

// TeeHandler sends each record to every handler whose level admits it. Nil
// handlers are skipped; with none left the result discards everything.
func TeeHandler(handlers ...slog.Handler) slog.Handler {
	live := make(fanout, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			live = append(live, h)
		}
	}
	switch len(live) {
	case 0:
		return NoopHandler{}
	case 1:
		return live[0]
	default:
		return live
	}
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for i, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		// Records share attr storage; every handler but the last gets a clone.
		rec := record
		if i < len(f)-1 {
			rec = record.Clone()
		}
		if err := h.Handle(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = fn(h)
	}
	return next
}
