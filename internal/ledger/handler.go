package ledger

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"persona/pkg/httputil"
)

// Handler exposes the chain status snapshot.
type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// Register mounts the ledger routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ledger/status", h.status)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.client.Status(r.Context()))
}
