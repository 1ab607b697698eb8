package logging

import "context"

type ctxAttrsKey struct{}

// ContextWith returns a copy of ctx carrying extra key-value pairs that every
// Logger call made with it will include, such as a per-event trace id.
func ContextWith(ctx context.Context, args ...any) context.Context {
	prev, _ := ctx.Value(ctxAttrsKey{}).([]any)
	attrs := make([]any, 0, len(prev)+len(args))
	attrs = append(attrs, prev...)
	attrs = append(attrs, args...)
	return context.WithValue(ctx, ctxAttrsKey{}, attrs)
}

func withContextAttrs(ctx context.Context, args []any) []any {
	if ctx == nil {
		return args
	}
	attrs, _ := ctx.Value(ctxAttrsKey{}).([]any)
	if len(attrs) == 0 {
		return args
	}
	out := make([]any, 0, len(attrs)+len(args))
	out = append(out, attrs...)
	return append(out, args...)
}
