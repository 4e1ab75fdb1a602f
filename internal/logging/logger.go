// Package logging defines the structured, context-aware logger used across
// memosync and its slog-backed implementation.
package logging

import "context"

// Logger takes a message plus alternating key/value pairs:
//
//	log.Info(ctx, "sync finished", "pulled", n, "account", key)
//
// The sync engine logs one Debug record per reconciliation decision and
// reports swallowed background failures at Warn.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With binds key/value pairs to every record of the returned logger.
	With(args ...any) Logger
}
