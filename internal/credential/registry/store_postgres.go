package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"persona/internal/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists DID records in PostgreSQL. Legacy name uniqueness
// is enforced by a partial unique index on (first_name, last_name).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL-backed DID record store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, record *DIDRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO did_records
		   (did, wallet_address, first_name, last_name, date_of_birth,
		    country, network_id, block_height, tx_hash, legacy, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.DID, record.WalletAddress,
		record.UserData.FirstName, record.UserData.LastName,
		record.UserData.DateOfBirth, record.UserData.Country,
		record.BlockchainInfo.NetworkID, record.BlockchainInfo.BlockHeight,
		record.BlockchainInfo.TxHash, record.Legacy, record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("did record already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create did record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, did string) (*DIDRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT did, wallet_address, first_name, last_name, date_of_birth,
		        country, network_id, block_height, tx_hash, legacy, created_at
		   FROM did_records WHERE did = $1`, did)

	var record DIDRecord
	err := row.Scan(&record.DID, &record.WalletAddress,
		&record.UserData.FirstName, &record.UserData.LastName,
		&record.UserData.DateOfBirth, &record.UserData.Country,
		&record.BlockchainInfo.NetworkID, &record.BlockchainInfo.BlockHeight,
		&record.BlockchainInfo.TxHash, &record.Legacy, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("did record not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find did record: %w", err)
	}
	return &record, nil
}
