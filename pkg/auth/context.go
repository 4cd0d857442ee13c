package auth

import "context"

// contextKey is a private type for the auth context key, preventing
// collisions with other packages.
type contextKey struct{}

// WithContext stores the authenticated caller context in the request context.
func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext retrieves the authenticated caller context.
// Returns nil if no identity was resolved (public route).
func FromContext(ctx context.Context) *Context {
	if v, ok := ctx.Value(contextKey{}).(*Context); ok {
		return v
	}
	return nil
}
