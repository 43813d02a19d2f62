// Package credential implements the verifiable credential lifecycle:
// building and signing credential documents bound to a DID, and checking
// signature and expiry on presented ones.
package credential

import (
	"bytes"
	"encoding/json"
	"time"

	dErrors "persona/pkg/domain-errors"
)

// BaseType is the mandatory first entry of every credential's type list.
const BaseType = "VerifiableCredential"

// ContextURI is the JSON-LD context all issued credentials carry.
const ContextURI = "https://www.w3.org/2018/credentials/v1"

// ProofType identifies the secp256k1 signature suite used for proofs.
const ProofType = "EcdsaSecp256k1Signature2019"

// Proof carries the issuer's signature over the canonical form of the
// credential without the proof itself.
type Proof struct {
	Type               string    `json:"type"`
	Created            time.Time `json:"created"`
	VerificationMethod string    `json:"verificationMethod"`
	Signature          string    `json:"signature"`
}

// Credential is a signed claim document bound to a holder DID.
type Credential struct {
	Context           []string       `json:"@context"`
	ID                string         `json:"id"`
	Type              []string       `json:"type"`
	Issuer            string         `json:"issuer"`
	IssuanceDate      time.Time      `json:"issuanceDate"`
	ExpirationDate    *time.Time     `json:"expirationDate,omitempty"`
	CredentialSubject map[string]any `json:"credentialSubject"`
	Proof             *Proof         `json:"proof,omitempty"`
}

// canonicalize returns deterministic bytes of the credential minus its
// proof. The document is round-tripped through a map so keys come out
// sorted regardless of struct field order, and HTML escaping is off so the
// signed bytes match what any other JSON tooling would produce.
func canonicalize(cred *Credential) ([]byte, error) {
	unsigned := *cred
	unsigned.Proof = nil

	raw, err := json.Marshal(&unsigned)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not serialize credential")
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not normalize credential")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not canonicalize credential")
	}
	// Encoder appends a newline; signatures are over the bare document.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// normalizeTypes returns the type list with the base type first and
// duplicates removed, preserving the caller's order otherwise.
func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types)+1)
	out = append(out, BaseType)
	seen := map[string]bool{BaseType: true}
	for _, t := range types {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
