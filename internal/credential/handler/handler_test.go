package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"persona/internal/credential"
	"persona/internal/identity"
)

func newTestRouter() chi.Router {
	r := chi.NewRouter()
	New(credential.NewIssuer(), credential.NewVerifier(), identity.NewGenerator(), nil).Register(r)
	return r
}

func postJSON(t *testing.T, r chi.Router, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func issueBody(t *testing.T) (map[string]any, *identity.Identity) {
	t.Helper()
	id, err := identity.NewGenerator().Generate()
	require.NoError(t, err)
	return map[string]any{
		"holder_did":  id.DID.String(),
		"private_key": id.PrivateKeyHex(),
		"subject":     map[string]any{"email": "alice@example.com"},
		"types":       []string{"EmailCredential"},
	}, id
}

func TestIssueEndpoint(t *testing.T) {
	r := newTestRouter()
	body, id := issueBody(t)

	rec := postJSON(t, r, "/credentials/issue", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var cred credential.Credential
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cred))
	require.Equal(t, []string{"VerifiableCredential", "EmailCredential"}, cred.Type)
	require.Equal(t, id.DID.String(), cred.Issuer)
	require.NotEmpty(t, cred.Proof.Signature)
}

func TestIssueThenVerifyOverHTTP(t *testing.T) {
	r := newTestRouter()
	body, _ := issueBody(t)

	issued := postJSON(t, r, "/credentials/issue", body, nil)
	require.Equal(t, http.StatusCreated, issued.Code)

	var cred credential.Credential
	require.NoError(t, json.Unmarshal(issued.Body.Bytes(), &cred))

	verified := postJSON(t, r, "/credentials/verify", cred, nil)
	require.Equal(t, http.StatusOK, verified.Code)

	var result credential.Result
	require.NoError(t, json.Unmarshal(verified.Body.Bytes(), &result))
	require.True(t, result.Valid)
}

func TestIssueIdempotency(t *testing.T) {
	r := newTestRouter()
	body, _ := issueBody(t)
	headers := map[string]string{"Idempotency-Key": "retry-1"}

	first := postJSON(t, r, "/credentials/issue", body, headers)
	require.Equal(t, http.StatusCreated, first.Code)
	second := postJSON(t, r, "/credentials/issue", body, headers)
	require.Equal(t, http.StatusOK, second.Code)

	var a, b credential.Credential
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	require.Equal(t, a.ID, b.ID)
	require.Equal(t, a.Proof.Signature, b.Proof.Signature)
}

func TestIssueIdempotencyExpires(t *testing.T) {
	h := New(credential.NewIssuer(), credential.NewVerifier(), identity.NewGenerator(), nil)
	r := chi.NewRouter()
	h.Register(r)

	body, _ := issueBody(t)
	headers := map[string]string{"Idempotency-Key": "retry-1"}

	first := postJSON(t, r, "/credentials/issue", body, headers)
	require.Equal(t, http.StatusCreated, first.Code)

	h.now = func() time.Time { return time.Now().Add(issuedTTL + time.Minute) }

	second := postJSON(t, r, "/credentials/issue", body, headers)
	require.Equal(t, http.StatusCreated, second.Code)

	var a, b credential.Credential
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	require.NotEqual(t, a.ID, b.ID)

	// The expired entry was evicted when the retry was recorded.
	require.Len(t, h.issued, 1)
	require.Equal(t, b.ID, h.issued["retry-1"].cred.ID)
}

func TestIssueRejectsForeignKey(t *testing.T) {
	r := newTestRouter()
	body, _ := issueBody(t)
	other, err := identity.NewGenerator().Generate()
	require.NoError(t, err)
	body["private_key"] = other.PrivateKeyHex()

	rec := postJSON(t, r, "/credentials/issue", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIssueValidatesInput(t *testing.T) {
	r := newTestRouter()

	body, _ := issueBody(t)
	body["types"] = []string{}
	rec := postJSON(t, r, "/credentials/issue", body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body, _ = issueBody(t)
	body["private_key"] = "not-hex"
	rec = postJSON(t, r, "/credentials/issue", body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEndpointTampered(t *testing.T) {
	r := newTestRouter()
	body, _ := issueBody(t)

	issued := postJSON(t, r, "/credentials/issue", body, nil)
	var cred credential.Credential
	require.NoError(t, json.Unmarshal(issued.Body.Bytes(), &cred))

	cred.CredentialSubject["email"] = "mallory@example.com"
	verified := postJSON(t, r, "/credentials/verify", cred, nil)
	require.Equal(t, http.StatusOK, verified.Code)

	var result credential.Result
	require.NoError(t, json.Unmarshal(verified.Body.Bytes(), &result))
	require.False(t, result.Valid)
	require.Equal(t, credential.ReasonBadSignature, result.Reason)
}

func TestVerifyEndpointMalformed(t *testing.T) {
	r := newTestRouter()

	rec := postJSON(t, r, "/credentials/verify", map[string]any{"issuer": "did:persona:abc"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
