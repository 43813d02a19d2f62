package credential

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"persona/internal/identity"
	dErrors "persona/pkg/domain-errors"
)

func newHolder(t *testing.T) (*identity.Identity, *Issuer, *Verifier) {
	t.Helper()
	id, err := identity.NewGenerator().Generate()
	require.NoError(t, err)
	return id, NewIssuer(), NewVerifier()
}

func TestIssueThenVerify(t *testing.T) {
	id, issuer, verifier := newHolder(t)

	cred, err := issuer.Issue(IssueRequest{
		HolderDID: id.DID.String(),
		Subject:   map[string]any{"email": "alice@example.com"},
		Types:     []string{"EmailCredential"},
	}, id.PrivateKey)
	require.NoError(t, err)

	require.Equal(t, []string{"VerifiableCredential", "EmailCredential"}, cred.Type)
	require.Equal(t, id.DID.String(), cred.Issuer)
	require.Equal(t, id.DID.String(), cred.CredentialSubject["id"])
	require.Equal(t, "alice@example.com", cred.CredentialSubject["email"])
	require.Contains(t, cred.ID, "urn:uuid:")
	require.Equal(t, ProofType, cred.Proof.Type)
	require.Equal(t, id.DID.String()+"#keys-1", cred.Proof.VerificationMethod)

	result, err := verifier.Verify(cred)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Empty(t, result.Reason)
}

func TestVerifySurvivesJSONRoundTrip(t *testing.T) {
	id, issuer, verifier := newHolder(t)

	cred, err := issuer.Issue(IssueRequest{
		HolderDID: id.DID.String(),
		Subject:   map[string]any{"email": "alice@example.com", "age": 30},
		Types:     []string{"EmailCredential"},
	}, id.PrivateKey)
	require.NoError(t, err)

	// A wire round trip must not disturb the signature.
	raw, err := json.Marshal(cred)
	require.NoError(t, err)
	var decoded Credential
	require.NoError(t, json.Unmarshal(raw, &decoded))

	result, err := verifier.Verify(&decoded)
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestTamperedSubjectFailsVerification(t *testing.T) {
	id, issuer, verifier := newHolder(t)

	cred, err := issuer.Issue(IssueRequest{
		HolderDID: id.DID.String(),
		Subject:   map[string]any{"email": "alice@example.com"},
		Types:     []string{"EmailCredential"},
	}, id.PrivateKey)
	require.NoError(t, err)

	cred.CredentialSubject["email"] = "mallory@example.com"

	result, err := verifier.Verify(cred)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, ReasonBadSignature, result.Reason)
}

func TestExpiredCredential(t *testing.T) {
	id, _, _ := newHolder(t)

	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := NewIssuer(WithIssuerClock(func() time.Time { return issued }))

	cred, err := issuer.Issue(IssueRequest{
		HolderDID: id.DID.String(),
		Subject:   map[string]any{"email": "alice@example.com"},
		Types:     []string{"EmailCredential"},
		ExpiresIn: time.Hour,
	}, id.PrivateKey)
	require.NoError(t, err)

	fresh := NewVerifier(WithVerifierClock(func() time.Time { return issued.Add(30 * time.Minute) }))
	result, err := fresh.Verify(cred)
	require.NoError(t, err)
	require.True(t, result.Valid)

	stale := NewVerifier(WithVerifierClock(func() time.Time { return issued.Add(2 * time.Hour) }))
	result, err = stale.Verify(cred)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, ReasonExpired, result.Reason)
}

func TestExpiryCheckedBeforeSignature(t *testing.T) {
	id, _, _ := newHolder(t)

	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := NewIssuer(WithIssuerClock(func() time.Time { return issued }))

	cred, err := issuer.Issue(IssueRequest{
		HolderDID: id.DID.String(),
		Subject:   map[string]any{"email": "alice@example.com"},
		Types:     []string{"EmailCredential"},
		ExpiresIn: time.Hour,
	}, id.PrivateKey)
	require.NoError(t, err)

	// Expired and tampered: expiry wins.
	cred.CredentialSubject["email"] = "mallory@example.com"
	stale := NewVerifier(WithVerifierClock(func() time.Time { return issued.Add(2 * time.Hour) }))
	result, err := stale.Verify(cred)
	require.NoError(t, err)
	require.Equal(t, ReasonExpired, result.Reason)
}

func TestWrongKeyIsRefusedAtIssuance(t *testing.T) {
	id, issuer, _ := newHolder(t)

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = issuer.Issue(IssueRequest{
		HolderDID: id.DID.String(),
		Subject:   map[string]any{"email": "alice@example.com"},
		Types:     []string{"EmailCredential"},
	}, otherKey)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeSecurityFailure))
}

func TestLegacyIssuerIsUnknown(t *testing.T) {
	id, issuer, verifier := newHolder(t)

	cred, err := issuer.Issue(IssueRequest{
		HolderDID: id.DID.String(),
		Subject:   map[string]any{"email": "alice@example.com"},
		Types:     []string{"EmailCredential"},
	}, id.PrivateKey)
	require.NoError(t, err)

	cred.Issuer = "did:persona:a3f1c2e4d5b6978810aabbccddeeff00112233445566778899aabbccddeeff00"

	result, err := verifier.Verify(cred)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, ReasonUnknownIssuer, result.Reason)
}

func TestTypeNormalization(t *testing.T) {
	id, issuer, _ := newHolder(t)

	cred, err := issuer.Issue(IssueRequest{
		HolderDID: id.DID.String(),
		Subject:   map[string]any{"email": "alice@example.com"},
		Types:     []string{"VerifiableCredential", "EmailCredential", "EmailCredential"},
	}, id.PrivateKey)
	require.NoError(t, err)
	require.Equal(t, []string{"VerifiableCredential", "EmailCredential"}, cred.Type)

	_, err = issuer.Issue(IssueRequest{
		HolderDID: id.DID.String(),
		Subject:   map[string]any{},
		Types:     nil,
	}, id.PrivateKey)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestMalformedCredentialIsHardError(t *testing.T) {
	_, _, verifier := newHolder(t)

	tests := []struct {
		name string
		cred *Credential
	}{
		{"nil", nil},
		{"no proof", &Credential{Issuer: "did:persona:x", Type: []string{BaseType}, CredentialSubject: map[string]any{}}},
		{"no issuer", &Credential{Proof: &Proof{Signature: "ab"}, Type: []string{BaseType}, CredentialSubject: map[string]any{}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := verifier.Verify(tc.cred)
			require.Error(t, err)
			require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestVerifyDoesNotMutate(t *testing.T) {
	id, issuer, verifier := newHolder(t)

	cred, err := issuer.Issue(IssueRequest{
		HolderDID: id.DID.String(),
		Subject:   map[string]any{"email": "alice@example.com"},
		Types:     []string{"EmailCredential"},
	}, id.PrivateKey)
	require.NoError(t, err)

	before, err := json.Marshal(cred)
	require.NoError(t, err)
	_, err = verifier.Verify(cred)
	require.NoError(t, err)
	after, err := json.Marshal(cred)
	require.NoError(t, err)
	require.Equal(t, string(before), string(after))
}
