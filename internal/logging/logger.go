// Package logging defines the structured-logging interface shared by the
// client components. The default implementation wraps log/slog.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "boot stage", "from", prev, "to", next)
type Logger interface {
	// Debug logs diagnostic detail (refresh reasons, timer arming).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs state transitions and lifecycle events.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs recovered conditions: swallowed listener panics, soft timeouts.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs collaborator failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
