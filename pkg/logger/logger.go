package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// HandlerOptions configures the slog handler.
type HandlerOptions struct {
	Level  slog.Level
	Writer io.Writer
}

// NewHandler creates a slog handler writing JSON records enriched with the
// request id stored in the context, if any.
func NewHandler(opts *HandlerOptions) slog.Handler {
	if opts == nil {
		opts = &HandlerOptions{Level: slog.LevelInfo, Writer: os.Stdout}
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	inner := slog.NewJSONHandler(opts.Writer, &slog.HandlerOptions{Level: opts.Level})

	return &ctxHandler{inner: inner}
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// WithRequestID stores a request id in the context for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

type ctxHandler struct {
	inner slog.Handler
}

func (h *ctxHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ctxHandler) Handle(ctx context.Context, record slog.Record) error {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		record.AddAttrs(slog.String("request_id", id))
	}

	return h.inner.Handle(ctx, record)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{inner: h.inner.WithGroup(name)}
}
