// Package handler exposes credential issuance and verification over HTTP.
package handler

import (
	"crypto/ecdsa"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"persona/internal/credential"
	"persona/internal/identity"
	"persona/internal/platform/metrics"
	dErrors "persona/pkg/domain-errors"
	"persona/pkg/httputil"
)

// Issuer signs credential documents.
type Issuer interface {
	Issue(req credential.IssueRequest, key *ecdsa.PrivateKey) (*credential.Credential, error)
}

// Verifier checks presented credentials.
type Verifier interface {
	Verify(cred *credential.Credential) (credential.Result, error)
}

// KeyParser re-derives an identity from a client-held private key.
type KeyParser interface {
	FromPrivateKey(hexKey string) (*identity.Identity, error)
}

// issuedTTL bounds how long an Idempotency-Key replays the original
// credential; after that a retry mints a fresh one. Keeps the map from
// growing without bound.
const issuedTTL = 24 * time.Hour

type issuedEntry struct {
	cred      *credential.Credential
	expiresAt time.Time
}

// Handler wires credential endpoints onto a chi router. Issuance retries
// carrying an Idempotency-Key header return the credential minted by the
// first attempt instead of signing a second one.
type Handler struct {
	issuer   Issuer
	verifier Verifier
	keys     KeyParser
	metrics  *metrics.Metrics
	now      func() time.Time

	mu     sync.Mutex
	issued map[string]issuedEntry
}

func New(issuer Issuer, verifier Verifier, keys KeyParser, m *metrics.Metrics) *Handler {
	return &Handler{
		issuer:   issuer,
		verifier: verifier,
		keys:     keys,
		metrics:  m,
		now:      time.Now,
		issued:   make(map[string]issuedEntry),
	}
}

func (h *Handler) lookupIssued(key string) (*credential.Credential, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.issued[key]
	if !ok || h.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.cred, true
}

func (h *Handler) rememberIssued(key string, cred *credential.Credential) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	// Opportunistic cleanup keeps the map bounded without a sweeper.
	for k, entry := range h.issued {
		if now.After(entry.expiresAt) {
			delete(h.issued, k)
		}
	}
	h.issued[key] = issuedEntry{cred: cred, expiresAt: now.Add(issuedTTL)}
}

// Register mounts the credential routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials/issue", h.issue)
	r.Post("/credentials/verify", h.verify)
}

type issueRequest struct {
	HolderDID  string         `json:"holder_did"`
	PrivateKey string         `json:"private_key"`
	Subject    map[string]any `json:"subject"`
	Types      []string       `json:"types"`
	ExpiresIn  string         `json:"expires_in,omitempty"`
}

// issue signs a credential with the holder's own key. The key arrives in
// the request because keys are client-held; it is zeroed before returning
// and never persisted.
func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		if prior, ok := h.lookupIssued(idemKey); ok {
			httputil.WriteJSON(w, http.StatusOK, prior)
			return
		}
	}

	var expiresIn time.Duration
	if req.ExpiresIn != "" {
		var err error
		expiresIn, err = time.ParseDuration(req.ExpiresIn)
		if err != nil || expiresIn < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "expires_in must be a non-negative duration"))
			return
		}
	}

	id, err := h.keys.FromPrivateKey(req.PrivateKey)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer identity.Zero(id.PrivateKey)

	cred, err := h.issuer.Issue(credential.IssueRequest{
		HolderDID: req.HolderDID,
		Subject:   req.Subject,
		Types:     req.Types,
		ExpiresIn: expiresIn,
	}, id.PrivateKey)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if idemKey != "" {
		h.rememberIssued(idemKey, cred)
	}
	httputil.WriteJSON(w, http.StatusCreated, cred)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var cred credential.Credential
	if err := httputil.Decode(r, &cred); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.verifier.Verify(&cred)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if h.metrics != nil {
		switch {
		case result.Valid:
			h.metrics.IncrementCredentialsVerified("valid")
		case result.Reason == credential.ReasonExpired:
			h.metrics.IncrementCredentialsVerified("expired")
		case result.Reason == credential.ReasonUnknownIssuer:
			h.metrics.IncrementCredentialsVerified("unknown_issuer")
		default:
			h.metrics.IncrementCredentialsVerified("bad_signature")
		}
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
