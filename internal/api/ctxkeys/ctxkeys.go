// Package ctxkeys holds the shared context keys for the API layer.
// A leaf package so api, middleware and handlers can share keys without
// import cycles.
package ctxkeys

import "context"

// Key is the unexported named type for all API context keys. context.Value
// compares type and value, so a named type cannot collide with string keys
// from other packages.
type Key string

// ClientID identifies the authenticated API client. Injected by the auth
// middleware from JWT claims.
const ClientID Key = "client_id"

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// ClientIDFrom reads the authenticated client from the context.
func ClientIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ClientID).(string)
	return v, ok && v != ""
}
