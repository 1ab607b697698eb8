// Package logging is the structured logger every bot component writes to.
// SlogLogger is the production implementation; internal/bot/wa adapts it to
// whatsmeow's logger.
package logging

import "context"

// Logger takes a message plus alternating key/value args:
//
//	l.Info(ctx, "vote merged", "poll_id", id, "voters", n)
//
// Attributes attached to ctx with ContextWith are added to every record.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always carries args.
	With(args ...any) Logger
}
