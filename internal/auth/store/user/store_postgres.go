package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"persona/internal/auth/models"
	"persona/internal/sentinel"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresStore persists accounts in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL-backed account store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts
		   (id, email, password_hash, did, wallet_address, kyc_status,
		    first_name, last_name, date_of_birth, country, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		account.ID, account.Email, account.PasswordHash, account.DID,
		account.WalletAddress, string(account.KYCStatus),
		account.FirstName, account.LastName, account.DateOfBirth,
		account.Country, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return s.findWhere(ctx, "id = $1", id)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findWhere(ctx, "email = $1", email)
}

func (s *PostgresStore) findWhere(ctx context.Context, where string, arg any) (*models.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, did, wallet_address, kyc_status,
		        first_name, last_name, date_of_birth, country, created_at
		   FROM accounts WHERE `+where, arg)

	var account models.Account
	var kyc string
	err := row.Scan(&account.ID, &account.Email, &account.PasswordHash,
		&account.DID, &account.WalletAddress, &kyc,
		&account.FirstName, &account.LastName, &account.DateOfBirth,
		&account.Country, &account.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	account.KYCStatus = models.KYCStatus(kyc)
	return &account, nil
}
