package wallet

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"persona/internal/identity"
)

func newHandlerRouter(t *testing.T) chi.Router {
	t.Helper()
	storage, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	store := NewSessionStore(identity.NewGenerator(), storage)
	r := chi.NewRouter()
	NewHandler(store).Register(r)
	return r
}

func doRequest(r chi.Router, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWalletLifecycleOverHTTP(t *testing.T) {
	r := newHandlerRouter(t)

	// No session yet.
	rec := doRequest(r, http.MethodGet, "/wallet", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Create.
	rec = doRequest(r, http.MethodPost, "/wallet", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created createResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Session.IsConnected)
	require.NotEmpty(t, created.PrivateKey)

	// Read back; the key is not part of the session representation.
	rec = doRequest(r, http.MethodGet, "/wallet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), created.PrivateKey)

	// Disconnect.
	rec = doRequest(r, http.MethodDelete, "/wallet", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(r, http.MethodGet, "/wallet", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Restore with the recorded key yields the same DID.
	payload, err := json.Marshal(restoreRequest{PrivateKey: created.PrivateKey})
	require.NoError(t, err)
	rec = doRequest(r, http.MethodPost, "/wallet/restore", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	var restored Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &restored))
	require.Equal(t, created.Session.DID, restored.DID)
}

func TestRestoreRejectsGarbageKey(t *testing.T) {
	r := newHandlerRouter(t)

	payload, err := json.Marshal(restoreRequest{PrivateKey: "not-a-key"})
	require.NoError(t, err)
	rec := doRequest(r, http.MethodPost, "/wallet/restore", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateConflictsWithActiveSession(t *testing.T) {
	r := newHandlerRouter(t)

	rec := doRequest(r, http.MethodPost, "/wallet", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(r, http.MethodPost, "/wallet", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddCredentialOverHTTP(t *testing.T) {
	r := newHandlerRouter(t)

	rec := doRequest(r, http.MethodPost, "/wallet", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(r, http.MethodPost, "/wallet/credentials",
		[]byte(`{"id":"urn:uuid:one","type":["VerifiableCredential"]}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var session Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.Len(t, session.Credentials, 1)
}
