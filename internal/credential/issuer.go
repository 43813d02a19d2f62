package credential

import (
	"crypto/ecdsa"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"persona/internal/identity"
	"persona/internal/platform/metrics"
	dErrors "persona/pkg/domain-errors"
)

// Issuer builds and signs credentials. The model is self-issuance: the
// holder signs claims about themselves with their own wallet key, so the
// issuer DID always equals the holder DID.
type Issuer struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// IssuerOption configures the Issuer.
type IssuerOption func(*Issuer)

// WithIssuerLogger sets the structured logger.
func WithIssuerLogger(logger *slog.Logger) IssuerOption {
	return func(i *Issuer) { i.logger = logger }
}

// WithIssuerMetrics enables metric emission.
func WithIssuerMetrics(m *metrics.Metrics) IssuerOption {
	return func(i *Issuer) { i.metrics = m }
}

// WithIssuerClock overrides the time source (tests).
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer constructs an Issuer.
func NewIssuer(opts ...IssuerOption) *Issuer {
	iss := &Issuer{now: time.Now}
	for _, opt := range opts {
		opt(iss)
	}
	if iss.logger == nil {
		iss.logger = slog.Default()
	}
	return iss
}

// IssueRequest is the input to Issue.
type IssueRequest struct {
	HolderDID string
	Subject   map[string]any
	Types     []string
	// ExpiresIn, when positive, stamps an expirationDate that far in the
	// future. Zero means the credential never expires.
	ExpiresIn time.Duration
}

// Issue builds the credential document, canonicalizes it and signs the
// Keccak256 digest of the canonical bytes with the holder's key. The key
// must resolve to the holder DID's address; signing with someone else's key
// is refused.
func (i *Issuer) Issue(req IssueRequest, key *ecdsa.PrivateKey) (*Credential, error) {
	if key == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "signing key is required")
	}
	if len(req.Types) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one claim type is required")
	}

	did, err := identity.ParseDID(req.HolderDID)
	if err != nil {
		return nil, err
	}
	addr, ok := did.Address()
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "legacy dids cannot issue credentials")
	}
	if crypto.PubkeyToAddress(key.PublicKey) != addr {
		return nil, dErrors.New(dErrors.CodeSecurityFailure, "signing key does not control holder did")
	}

	subject := make(map[string]any, len(req.Subject)+1)
	for k, v := range req.Subject {
		subject[k] = v
	}
	subject["id"] = did.String()

	now := i.now().UTC()
	cred := &Credential{
		Context:           []string{ContextURI},
		ID:                "urn:uuid:" + uuid.NewString(),
		Type:              normalizeTypes(req.Types),
		Issuer:            did.String(),
		IssuanceDate:      now,
		CredentialSubject: subject,
	}
	if req.ExpiresIn > 0 {
		expires := now.Add(req.ExpiresIn)
		cred.ExpirationDate = &expires
	}

	canonical, err := canonicalize(cred)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(crypto.Keccak256(canonical), key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not sign credential")
	}

	cred.Proof = &Proof{
		Type:               ProofType,
		Created:            now,
		VerificationMethod: did.String() + "#keys-1",
		Signature:          hex.EncodeToString(sig),
	}

	i.logger.Info("credential issued",
		"credential_id", cred.ID,
		"holder_did", did.String(),
		"types", cred.Type,
	)
	if i.metrics != nil {
		i.metrics.IncrementCredentialsIssued()
	}
	return cred, nil
}
