// Package handler exposes registration, TOTP enrollment and the two-step
// login sequence over HTTP.
package handler

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"

	"persona/internal/auth/models"
	"persona/internal/totp"
	"persona/pkg/httputil"
)

// Authenticator is the service surface the handler depends on.
type Authenticator interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.AccountSummary, error)
	LoginPassword(ctx context.Context, email, password string) (*models.PasswordStepResult, error)
	LoginTOTP(ctx context.Context, email, password, code string) (*models.LoginResult, error)
}

// Enroller provisions and removes TOTP secrets.
type Enroller interface {
	Setup(ctx context.Context, email string) (*totp.Enrollment, error)
	Disable(ctx context.Context, email string) error
}

// Handler wires auth endpoints onto a chi router.
type Handler struct {
	auth     Authenticator
	enroller Enroller
}

func New(auth Authenticator, enroller Enroller) *Handler {
	return &Handler{auth: auth, enroller: enroller}
}

// Register mounts the auth routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/totp/setup", h.totpSetup)
	r.Post("/auth/totp/disable", h.totpDisable)
	r.Post("/auth/login/password", h.loginPassword)
	r.Post("/auth/login/totp", h.loginTOTP)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	summary, err := h.auth.Register(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, summary)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type totpSetupResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	QRCode string `json:"qr_code"`
}

// totpSetup provisions a fresh TOTP secret. The caller proves account
// ownership by presenting the password; re-running setup replaces any
// previous secret.
func (h *Handler) totpSetup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.auth.LoginPassword(r.Context(), req.Email, req.Password); err != nil {
		httputil.WriteError(w, err)
		return
	}

	enrollment, err := h.enroller.Setup(r.Context(), req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, totpSetupResponse{
		Secret: enrollment.Secret,
		URI:    enrollment.URI,
		QRCode: base64.StdEncoding.EncodeToString(enrollment.QRCode),
	})
}

// totpDisable removes the second factor. Gated on the password like setup;
// subsequent logins fail with totp-not-configured until re-enrollment.
func (h *Handler) totpDisable(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.auth.LoginPassword(r.Context(), req.Email, req.Password); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.enroller.Disable(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) loginPassword(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	step, err := h.auth.LoginPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, step)
}

type totpLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

func (h *Handler) loginTOTP(w http.ResponseWriter, r *http.Request) {
	var req totpLoginRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.auth.LoginTOTP(r.Context(), req.Email, req.Password, req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
