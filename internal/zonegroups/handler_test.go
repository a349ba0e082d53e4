package zonegroups

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type memoryStore struct {
	mappings map[string]string
}

func (s *memoryStore) ListMappings(ctx context.Context) (map[string]string, error) {
	return s.mappings, nil
}

func (s *memoryStore) Save(ctx context.Context, zone, group string) error {
	if s.mappings == nil {
		s.mappings = make(map[string]string)
	}
	s.mappings[zone] = group
	return nil
}

func TestHandlerListsOverrides(t *testing.T) {
	store := &memoryStore{mappings: map[string]string{"NUEVA-ZONA": "CAMARONERAS"}}
	handler, err := NewHandler(store, NewResolver(quietLogger(), store, 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/zone-groups", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var decoded map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded["NUEVA-ZONA"] != "CAMARONERAS" {
		t.Fatalf("unexpected overrides %v", decoded)
	}
}

func TestHandlerSaveRefreshesResolver(t *testing.T) {
	store := &memoryStore{}
	resolver := NewResolver(quietLogger(), store, 0)
	handler, err := NewHandler(store, resolver)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := strings.NewReader(`{"zone": "nueva-zona", "group": "CAMARONERAS"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/zone-groups", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if got := resolver.Resolve("NUEVA-ZONA"); got != "CAMARONERAS" {
		t.Fatalf("expected immediate visibility, got %q", got)
	}
}

func TestHandlerSaveRejectsEmptyFields(t *testing.T) {
	store := &memoryStore{}
	handler, err := NewHandler(store, NewResolver(quietLogger(), store, 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/zone-groups", strings.NewReader(`{"zone": "", "group": ""}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
