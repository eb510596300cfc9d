package core

import "context"

// Context keys for fetch metadata
type contextKey string

const (
	fetchKeyKey   contextKey = "fetchKey"
	fetchLabelKey contextKey = "fetchLabel"
)

// withFetchInfo records which key and label a fetch runs for
func withFetchInfo(ctx context.Context, key, label string) context.Context {
	ctx = context.WithValue(ctx, fetchKeyKey, key)
	return context.WithValue(ctx, fetchLabelKey, label)
}

// FetchKey returns the cache key a fetch function is running for.
func FetchKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(fetchKeyKey).(string)
	return key, ok
}

// FetchLabel returns the instrumentation label of the fetch in ctx.
func FetchLabel(ctx context.Context) string {
	label, ok := ctx.Value(fetchLabelKey).(string)
	if !ok {
		return "" // not inside a coordinator fetch
	}
	return label
}
