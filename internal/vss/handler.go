package vss

import (
	"encoding/json"
	"errors"
	"net/http"
)

// CredentialsHandler exposes cached credentials to stream consumers.
type CredentialsHandler struct {
	auth *AuthService
}

// NewCredentialsHandler constructs a handler.
func NewCredentialsHandler(auth *AuthService) (*CredentialsHandler, error) {
	if auth == nil {
		return nil, errors.New("vss handler: nil auth service")
	}
	return &CredentialsHandler{auth: auth}, nil
}

// ServeHTTP handles GET /api/v1/vss/credentials. A sentinel response means
// the subsystem is unreachable; consumers retry later.
func (h *CredentialsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	creds := h.auth.GetCredentials(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if !creds.Valid() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(creds)
}
