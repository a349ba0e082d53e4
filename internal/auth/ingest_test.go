package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestIngestAuth_PassThroughWithoutSecret(t *testing.T) {
	mw := NewIngestAuthMiddleware(nil, time.Minute)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/on-track/FERASA", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through without secret, got %d", rec.Code)
	}
}

func TestIngestAuth_ValidSignature(t *testing.T) {
	secret := []byte("shared")
	mw := NewIngestAuthMiddleware(secret, time.Minute)
	var gotBody string
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := make([]byte, 64)
		n, _ := r.Body.Read(raw)
		gotBody = string(raw[:n])
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"texto": true}`
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/on-track/FERASA", strings.NewReader(body))
	req.Header.Set("X-Ingest-Timestamp", timestamp)
	req.Header.Set("X-Ingest-Signature", computeIngestSignature(secret, timestamp, []byte(body)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotBody != body {
		t.Fatalf("body must survive verification, got %q", gotBody)
	}
}

func TestIngestAuth_RejectsBadSignature(t *testing.T) {
	mw := NewIngestAuthMiddleware([]byte("shared"), time.Minute)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/on-track/FERASA", strings.NewReader("{}"))
	req.Header.Set("X-Ingest-Timestamp", timestamp)
	req.Header.Set("X-Ingest-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestIngestAuth_RejectsStaleTimestamp(t *testing.T) {
	secret := []byte("shared")
	mw := NewIngestAuthMiddleware(secret, time.Minute)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	body := "{}"
	timestamp := fmt.Sprintf("%d", time.Now().Add(-time.Hour).Unix())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/on-track/FERASA", strings.NewReader(body))
	req.Header.Set("X-Ingest-Timestamp", timestamp)
	req.Header.Set("X-Ingest-Signature", computeIngestSignature(secret, timestamp, []byte(body)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale timestamp, got %d", rec.Code)
	}
}
