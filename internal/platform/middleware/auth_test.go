package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"persona/internal/auth/models"
	"persona/internal/token"
)

func sessionProtected(t *testing.T) (http.Handler, *token.Service) {
	t.Helper()
	tokens := token.NewService("test-signing-key", "persona", time.Hour)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetSessionClaims(r.Context())
		require.NotNil(t, claims)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(claims.Email))
	})
	return RequireSession(tokens, slog.Default())(inner), tokens
}

func TestRequireSessionAcceptsValidToken(t *testing.T) {
	handler, tokens := sessionProtected(t)

	account := &models.Account{
		ID:    uuid.New(),
		Email: "ada@example.com",
		DID:   "did:persona:1b5a5d8f3c2e4a6b8c0d2e4f6a8b0c1d2e3f4a5b",
	}
	signed, _, err := tokens.Issue(account, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ada@example.com", rec.Body.String())
}

func TestRequireSessionRejectsMissingAndBadTokens(t *testing.T) {
	handler, _ := sessionProtected(t)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireSessionRejectsExpiredToken(t *testing.T) {
	handler, tokens := sessionProtected(t)

	account := &models.Account{ID: uuid.New(), Email: "ada@example.com"}
	signed, _, err := tokens.Issue(account, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
