// Package logging defines the structured logger used by handlers, services
// and background workers.
package logging

import "context"

// Logger is a context-aware, structured logger.  Args are key-value pairs:
//
//	log.Info(ctx, "code issued", "email", email)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
