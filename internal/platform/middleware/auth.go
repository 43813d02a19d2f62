package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"persona/internal/token"
	dErrors "persona/pkg/domain-errors"
	"persona/pkg/httputil"
)

// SessionValidator checks a bearer token and returns its claims.
type SessionValidator interface {
	Validate(tokenString string) (*token.SessionClaims, error)
}

type sessionClaimsKey struct{}

// RequireSession rejects requests without a valid session token and puts
// the claims in the request context for handlers downstream.
func RequireSession(validator SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := validator.Validate(raw)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected session token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				httputil.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionClaimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionClaims returns the authenticated session claims, or nil when
// the request did not pass RequireSession.
func GetSessionClaims(ctx context.Context) *token.SessionClaims {
	claims, _ := ctx.Value(sessionClaimsKey{}).(*token.SessionClaims)
	return claims
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return header[len(prefix):]
}
