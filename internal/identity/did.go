package identity

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "persona/pkg/domain-errors"
)

// Prefix is the DID method prefix for all identifiers minted here.
const Prefix = "did:persona:"

// DID is a parsed did:persona identifier.
//
// Two forms exist. New identifiers are always address-derived
// (did:persona:<40 hex>, the holder's wallet address without the 0x prefix),
// which makes the public key resolvable from the DID itself. The legacy form
// (did:persona:<64 hex>, a hash of name, timestamp and random bytes) is
// accepted for lookups only; nothing issues it anymore.
type DID struct {
	raw     string
	address common.Address
	legacy  bool
}

// FromAddress derives the canonical DID for a wallet address.
func FromAddress(addr common.Address) DID {
	return DID{
		raw:     Prefix + hex.EncodeToString(addr[:]),
		address: addr,
	}
}

// ParseDID validates a did:persona string in either form.
func ParseDID(s string) (DID, error) {
	if !strings.HasPrefix(s, Prefix) {
		return DID{}, dErrors.New(dErrors.CodeInvalidInput, "not a did:persona identifier")
	}
	suffix := strings.ToLower(strings.TrimPrefix(s, Prefix))

	raw, err := hex.DecodeString(suffix)
	if err != nil {
		return DID{}, dErrors.New(dErrors.CodeInvalidInput, "did suffix is not hex")
	}

	switch len(raw) {
	case common.AddressLength:
		return DID{raw: Prefix + suffix, address: common.BytesToAddress(raw)}, nil
	case 32:
		return DID{raw: Prefix + suffix, legacy: true}, nil
	default:
		return DID{}, dErrors.New(dErrors.CodeInvalidInput, "did suffix has unexpected length")
	}
}

// String returns the canonical (lowercase) DID string.
func (d DID) String() string {
	return d.raw
}

// Legacy reports whether this is a legacy name-hash identifier.
// Legacy DIDs carry no resolvable key material.
func (d DID) Legacy() bool {
	return d.legacy
}

// Address returns the wallet address an address-derived DID resolves to.
// The second return is false for legacy DIDs.
func (d DID) Address() (common.Address, bool) {
	if d.legacy || d.raw == "" {
		return common.Address{}, false
	}
	return d.address, true
}
