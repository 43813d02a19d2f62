package wallet

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"

	dErrors "persona/pkg/domain-errors"
)

func signDigest(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	if len(digest) != 32 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "digest must be 32 bytes")
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not sign digest")
	}
	return sig, nil
}
