package auth

import (
	"context"

	"spendwise/internal/core"
)

type ctxKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(core.User)
	return u, ok
}

// RequireUser is UserFromContext that fails with core.ErrUnauthenticated.
func RequireUser(ctx context.Context) (core.User, error) {
	u, ok := UserFromContext(ctx)
	if !ok || u.ID == 0 {
		return core.User{}, core.ErrUnauthenticated
	}
	return u, nil
}
