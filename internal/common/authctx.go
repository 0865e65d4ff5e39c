package common

import "context"

type userIDKey struct{}

// WithUserID marks the request context as belonging to the given customer.
// Set by the auth middleware after the token subject is resolved.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserID returns the authenticated customer id, if the request carries one.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
