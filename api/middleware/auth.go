package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/grocery-backend/api/responses"
	pkgAuth "github.com/angelmondragon/grocery-backend/pkg/auth"
	"github.com/angelmondragon/grocery-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

var errNoBearer = errors.New("missing bearer token")

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. A bare token without the scheme is accepted too.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found {
		if strings.EqualFold(scheme, "bearer") {
			return "", errNoBearer
		}
		token = scheme
	} else if !strings.EqualFold(scheme, "bearer") {
		return "", errNoBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errNoBearer
	}
	return token, nil
}

// Auth admits requests carrying a valid access token and records the caller's
// identity on the request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "missing credentials"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithIdentity(r.Context(), claims.Email, claims.Role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					logger.FieldUserID:    claims.Email,
					logger.FieldActorRole: string(claims.Role),
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
