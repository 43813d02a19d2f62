package credential

import (
	"encoding/hex"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"persona/internal/identity"
	dErrors "persona/pkg/domain-errors"
)

// Reason explains why a credential failed verification.
type Reason string

const (
	ReasonExpired       Reason = "Expired"
	ReasonBadSignature  Reason = "BadSignature"
	ReasonUnknownIssuer Reason = "UnknownIssuer"
)

// Result is the outcome of verification. Invalid credentials carry a
// reason instead of an error; errors are reserved for malformed input.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
}

// Verifier checks credential signatures and expiry. Verification is a pure
// function of the credential contents; nothing is mutated and no network is
// touched, since address-derived DIDs carry their own key resolution.
type Verifier struct {
	now func() time.Time
}

// VerifierOption configures the Verifier.
type VerifierOption func(*Verifier)

// WithVerifierClock overrides the time source (tests).
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier constructs a Verifier.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks a presented credential. Expiry is checked before the
// signature so an expired credential reports Expired even when tampered
// with. A structurally broken document is a hard error, not an invalid
// result.
func (v *Verifier) Verify(cred *Credential) (Result, error) {
	if err := checkShape(cred); err != nil {
		return Result{}, err
	}

	if cred.ExpirationDate != nil && v.now().After(*cred.ExpirationDate) {
		return Result{Valid: false, Reason: ReasonExpired}, nil
	}

	did, err := identity.ParseDID(cred.Issuer)
	if err != nil {
		return Result{Valid: false, Reason: ReasonUnknownIssuer}, nil
	}
	addr, ok := did.Address()
	if !ok {
		// Legacy DIDs carry no key material to verify against.
		return Result{Valid: false, Reason: ReasonUnknownIssuer}, nil
	}

	sig, err := hex.DecodeString(cred.Proof.Signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return Result{Valid: false, Reason: ReasonBadSignature}, nil
	}

	canonical, err := canonicalize(cred)
	if err != nil {
		return Result{}, err
	}
	pub, err := crypto.SigToPub(crypto.Keccak256(canonical), sig)
	if err != nil {
		return Result{Valid: false, Reason: ReasonBadSignature}, nil
	}
	if crypto.PubkeyToAddress(*pub) != addr {
		return Result{Valid: false, Reason: ReasonBadSignature}, nil
	}

	return Result{Valid: true}, nil
}

func checkShape(cred *Credential) error {
	switch {
	case cred == nil:
		return dErrors.New(dErrors.CodeInvalidInput, "credential is required")
	case cred.Proof == nil:
		return dErrors.New(dErrors.CodeInvalidInput, "credential has no proof")
	case cred.Proof.Signature == "":
		return dErrors.New(dErrors.CodeInvalidInput, "proof has no signature")
	case cred.Issuer == "":
		return dErrors.New(dErrors.CodeInvalidInput, "credential has no issuer")
	case len(cred.Type) == 0:
		return dErrors.New(dErrors.CodeInvalidInput, "credential has no type")
	case cred.CredentialSubject == nil:
		return dErrors.New(dErrors.CodeInvalidInput, "credential has no subject")
	}
	return nil
}
