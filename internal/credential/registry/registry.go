// Package registry persists DID records: the mapping from a DID to its
// wallet address, the holder profile snapshot taken at creation, and
// informational chain anchoring data.
package registry

import (
	"context"
	"time"

	"persona/internal/identity"
)

// UserData is the holder profile snapshot captured when the record was
// created. It never updates afterwards.
type UserData struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Country     string `json:"country,omitempty"`
}

// BlockchainInfo is informational anchoring data. It plays no part in
// identity correctness and may be zero.
type BlockchainInfo struct {
	NetworkID   string `json:"network_id,omitempty"`
	BlockHeight int64  `json:"block_height,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
}

// DIDRecord is one registered identifier.
type DIDRecord struct {
	DID            string         `json:"did"`
	WalletAddress  string         `json:"wallet_address"`
	UserData       UserData       `json:"user_data"`
	BlockchainInfo BlockchainInfo `json:"blockchain_info"`
	Legacy         bool           `json:"legacy"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Store is the DID record persistence contract.
// Error Contract: Find returns sentinel.ErrNotFound for unknown DIDs;
// Create returns sentinel.ErrConflict for a duplicate DID, or for a
// duplicate (first name, last name) pair on the legacy path.
type Store interface {
	Create(ctx context.Context, record *DIDRecord) error
	Find(ctx context.Context, did string) (*DIDRecord, error)
}

// NewRecord builds an address-derived record for a freshly minted identity.
func NewRecord(id *identity.Identity, data UserData, now time.Time) *DIDRecord {
	return &DIDRecord{
		DID:           id.DID.String(),
		WalletAddress: id.Address,
		UserData:      data,
		CreatedAt:     now.UTC(),
	}
}
