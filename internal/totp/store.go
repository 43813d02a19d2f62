package totp

import "context"

// SecretStore persists sealed TOTP secrets keyed by account email.
// Error Contract: Find returns sentinel.ErrNotFound (wrapped) when no secret
// exists for the email. Save overwrites any prior secret.
type SecretStore interface {
	Save(ctx context.Context, email string, sealed []byte) error
	Find(ctx context.Context, email string) ([]byte, error)
	Delete(ctx context.Context, email string) error
}
