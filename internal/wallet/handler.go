package wallet

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"persona/internal/credential"
	dErrors "persona/pkg/domain-errors"
	"persona/pkg/httputil"
)

// Handler exposes the wallet session over HTTP.
type Handler struct {
	store *SessionStore
}

func NewHandler(store *SessionStore) *Handler {
	return &Handler{store: store}
}

// Register mounts the wallet routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/wallet", h.current)
	r.Post("/wallet", h.create)
	r.Post("/wallet/restore", h.restore)
	r.Post("/wallet/refresh", h.refresh)
	r.Post("/wallet/credentials", h.addCredential)
	r.Delete("/wallet", h.disconnect)
}

// createResponse carries the private key exactly once, at mint time, so
// the holder can record it. It is never retrievable again.
type createResponse struct {
	Session    Session `json:"session"`
	PrivateKey string  `json:"private_key"`
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	session, ok := h.store.Current()
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no active wallet session"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	session, keyHex, err := h.store.Create(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, createResponse{Session: session, PrivateKey: keyHex})
}

type restoreRequest struct {
	PrivateKey string `json:"private_key"`
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	session, err := h.store.Restore(r.Context(), req.PrivateKey)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.UpdateBalance(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) addCredential(w http.ResponseWriter, r *http.Request) {
	var cred credential.Credential
	if err := httputil.Decode(r, &cred); err != nil {
		httputil.WriteError(w, err)
		return
	}
	session, err := h.store.AddCredential(r.Context(), &cred)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Disconnect(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
