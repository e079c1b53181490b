package middleware

import (
	"context"

	"github.com/openmaraude/apitaxi/pkg/db/models"
)

type contextKey string

const ctxUser contextKey = "user"

// WithUser injects the authenticated account into the context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUser, user)
}

// UserFromContext returns the authenticated account, or nil outside an
// authenticated route.
func UserFromContext(ctx context.Context) *models.User {
	if ctx == nil {
		return nil
	}
	if user, ok := ctx.Value(ctxUser).(*models.User); ok {
		return user
	}
	return nil
}
