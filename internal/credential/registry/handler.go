package registry

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"persona/internal/identity"
	"persona/internal/sentinel"
	dErrors "persona/pkg/domain-errors"
	"persona/pkg/httputil"
)

// Handler exposes DID resolution. Both identifier forms resolve: the
// address-derived scheme and the legacy name-hash scheme, which exists only
// as a lookup path.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the registry routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/did/{did}", h.resolve)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	did, err := identity.ParseDID(chi.URLParam(r, "did"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.store.Find(r.Context(), did.String())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "did is not registered"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "registry unreachable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}
