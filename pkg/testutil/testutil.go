// Package testutil provides common test utilities for handler and service tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"time"

	"fieldsync/pkg/requestcontext"
)

// Logger returns a slog logger that discards output, for tests that need a
// non-nil logger.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ContextAt returns a background context with a pinned clock, so stores that
// read requestcontext.Now observe a fixed time.
func ContextAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}
