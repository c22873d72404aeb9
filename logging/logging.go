// Package logging provides a context-carried log writer, mirroring the
// teacher SDK's pattern of stashing an io.Writer on the context so
// library code logs through whatever sink the caller wired up without
// needing a logger threaded through every call.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type writerKey struct{}

// WithWriter returns a context carrying w as the destination for log
// output. Handlers wrap each request's context with this so the
// eventual slog output is attributable, e.g. to a per-connection buffer
// in tests.
func WithWriter(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, writerKey{}, w)
}

// Writer returns the io.Writer stashed on ctx, or os.Stdout if none was
// set.
func Writer(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(writerKey{}).(io.Writer); ok && w != nil {
		return w
	}
	return os.Stdout
}

// FromContext builds a text-handler *slog.Logger writing to whatever ctx
// carries, suitable for one-off use at a call site:
//
//	logging.FromContext(ctx).Info("observation added", "sequence", seq)
func FromContext(ctx context.Context) *slog.Logger {
	return slog.New(slog.NewTextHandler(Writer(ctx), nil))
}

// New builds a logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
