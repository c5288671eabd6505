package goClerk

import "context"

type auditTagsContextKey struct{}

// WithAuditTag attaches a key/value pair to ctx. Every audit event emitted
// for an operation called with ctx carries the accumulated tags in its
// Metadata. Tags set by the operation itself win on conflict.
func WithAuditTag(ctx context.Context, key, value string) context.Context {
	prev := auditTagsFromContext(ctx)
	next := make(map[string]string, len(prev)+1)
	for k, v := range prev {
		next[k] = v
	}
	next[key] = value
	return context.WithValue(ctx, auditTagsContextKey{}, next)
}

func auditTagsFromContext(ctx context.Context) map[string]string {
	if ctx == nil {
		return nil
	}
	tags, _ := ctx.Value(auditTagsContextKey{}).(map[string]string)
	return tags
}
