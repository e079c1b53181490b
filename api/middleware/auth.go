package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/openmaraude/apitaxi/api/responses"
	"github.com/openmaraude/apitaxi/pkg/db/models"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

const apiKeyHeader = "X-Api-Key"

// UserFinder resolves an account from its API key.
type UserFinder interface {
	FindByAPIKey(ctx context.Context, apiKey string) (*models.User, error)
}

// Auth resolves the X-Api-Key header to an account and seeds the
// request context with it.
func Auth(users UserFinder, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(apiKeyHeader))
			if key == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			user, err := users.FindByAPIKey(r.Context(), key)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials"))
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve credentials"))
				return
			}

			ctx := WithUser(r.Context(), user)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    user.ID.String(),
					"user_email": user.Email,
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
