// Package identity mints decentralized identifiers and the key material
// backing them.
package identity

import (
	"crypto/ecdsa"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"

	dErrors "persona/pkg/domain-errors"
)

// Identity is a freshly generated or re-derived keypair with its DID.
// The private key lives only in memory; callers own persistence of the
// public parts and must never write the key to durable storage.
type Identity struct {
	DID        DID
	Address    string // 0x-prefixed lowercase hex
	PublicKey  string // uncompressed secp256k1 point, hex
	PrivateKey *ecdsa.PrivateKey
}

// Generator produces identities from the platform's secure random source.
type Generator struct{}

// NewGenerator constructs a Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate mints a new identity. All key material comes from crypto/rand;
// if the secure random source fails, generation fails — there is no
// fallback to a weaker source.
func (g *Generator) Generate() (*Identity, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeEntropyUnavailable, "secure random source unavailable")
	}
	return fromKey(key), nil
}

// FromPrivateKey re-derives an identity from a hex-encoded private key.
// This is the wallet recovery path; the DID and address are deterministic
// functions of the key.
func (g *Generator) FromPrivateKey(hexKey string) (*Identity, error) {
	key, err := crypto.HexToECDSA(trim0x(hexKey))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid private key")
	}
	return fromKey(key), nil
}

func fromKey(key *ecdsa.PrivateKey) *Identity {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &Identity{
		DID:        FromAddress(addr),
		Address:    "0x" + hex.EncodeToString(addr[:]),
		PublicKey:  hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey)),
		PrivateKey: key,
	}
}

// PrivateKeyHex encodes the private key for transient display to the holder
// (recovery phrase surface). Callers must not persist the result.
func (id *Identity) PrivateKeyHex() string {
	return hex.EncodeToString(crypto.FromECDSA(id.PrivateKey))
}

// Zero overwrites the private scalar. Best effort: Go gives no guarantee
// about copies the runtime may have made.
func Zero(key *ecdsa.PrivateKey) {
	if key == nil || key.D == nil {
		return
	}
	key.D.SetInt64(0)
}

func trim0x(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
