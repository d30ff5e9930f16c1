package logger

import (
	"context"
	"log/slog"
)

// ContextHandler adds the conversation and turn identifiers carried by the
// context to every record before passing it on.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler wraps inner. The common attributes are attached once and
// appear on every record.
func NewContextHandler(inner slog.Handler, common ...slog.Attr) *ContextHandler {
	if len(common) > 0 {
		inner = inner.WithAttrs(common)
	}
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

//nolint:gocritic // slog.Handler takes the record by value
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	var attrs []slog.Attr
	for _, key := range allContextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	if len(attrs) == 0 {
		return h.inner.Handle(ctx, r)
	}

	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(attrs...)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(a)
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}

var _ slog.Handler = (*ContextHandler)(nil)
