package middleware

import (
	"net/http"
	"strings"

	"github.com/tokenforge/licensecore/api/responses"
	pkgAuth "github.com/tokenforge/licensecore/pkg/auth"
	"github.com/tokenforge/licensecore/pkg/config"
	pkgerrors "github.com/tokenforge/licensecore/pkg/errors"
	"github.com/tokenforge/licensecore/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// authenticated account.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithAccountID(r.Context(), claims.AccountID.String())
			ctx = WithAccountKind(ctx, string(claims.Kind))

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"account_id":   claims.AccountID.String(),
					"account_kind": string(claims.Kind),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
