package totp

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"persona/internal/sentinel"
)

// PostgresSecretStore persists sealed secrets in PostgreSQL.
type PostgresSecretStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL-backed secret store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresSecretStore {
	return &PostgresSecretStore{pool: pool}
}

func (s *PostgresSecretStore) Save(ctx context.Context, email string, sealed []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO totp_secrets (email, sealed, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (email) DO UPDATE SET sealed = EXCLUDED.sealed, updated_at = now()`,
		email, sealed)
	if err != nil {
		return fmt.Errorf("save totp secret: %w", err)
	}
	return nil
}

func (s *PostgresSecretStore) Find(ctx context.Context, email string) ([]byte, error) {
	var sealed []byte
	err := s.pool.QueryRow(ctx,
		`SELECT sealed FROM totp_secrets WHERE email = $1`, email).Scan(&sealed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("totp secret not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find totp secret: %w", err)
	}
	return sealed, nil
}

func (s *PostgresSecretStore) Delete(ctx context.Context, email string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM totp_secrets WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("delete totp secret: %w", err)
	}
	return nil
}
