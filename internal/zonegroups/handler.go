package zonegroups

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// MappingStore persists zone->group overrides.
type MappingStore interface {
	MappingSource
	Save(ctx context.Context, zone, group string) error
}

// Handler exposes the override table over HTTP. Writes refresh the resolver
// so the new mapping takes effect without waiting out the ttl.
type Handler struct {
	store    MappingStore
	resolver *Resolver
}

// NewHandler constructs a handler.
func NewHandler(store MappingStore, resolver *Resolver) (*Handler, error) {
	if store == nil {
		return nil, errors.New("zone groups handler: nil store")
	}
	if resolver == nil {
		return nil, errors.New("zone groups handler: nil resolver")
	}
	return &Handler{store: store, resolver: resolver}, nil
}

type overrideRequest struct {
	Zone  string `json:"zone"`
	Group string `json:"group"`
}

// ServeHTTP handles GET and PUT /api/v1/zone-groups.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPut:
		h.handleSave(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.store.ListMappings(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(overrides)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	zone := strings.ToUpper(strings.TrimSpace(req.Zone))
	group := strings.TrimSpace(req.Group)
	if zone == "" || group == "" {
		http.Error(w, "zone and group are required", http.StatusBadRequest)
		return
	}
	if err := h.store.Save(r.Context(), zone, group); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.resolver.Refresh(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
