// Package token issues and validates signed session tokens.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"persona/internal/auth/models"
	dErrors "persona/pkg/domain-errors"
)

// SessionClaims are the JWT claims bound into a session token.
type SessionClaims struct {
	Email string `json:"email"`
	DID   string `json:"did"`
	jwt.RegisteredClaims
}

// Service handles session token creation and validation using HS256.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewService constructs a token service. ttl bounds token lifetime.
func NewService(signingKey, issuer string, ttl time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// Issue signs a session token for the account. The token binds account ID,
// email and DID, with issued-at and expiry claims.
func (s *Service) Issue(account *models.Account, now time.Time) (string, time.Time, error) {
	jtiBytes := make([]byte, 16)
	if _, err := rand.Read(jtiBytes); err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeEntropyUnavailable, "could not generate token id")
	}

	expiresAt := now.Add(s.ttl)
	claims := SessionClaims{
		Email: account.Email,
		DID:   account.DID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        hex.EncodeToString(jtiBytes),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not sign session token")
	}
	return signed, expiresAt, nil
}

// Validate parses a session token, enforcing the signing algorithm, the
// signature, expiry and issuer.
func (s *Service) Validate(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing token")
	}

	claims := new(SessionClaims)
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}
