package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	events "geofleet-cloud/internal/events/domain"
	visitapp "geofleet-cloud/internal/visits/application"
	visits "geofleet-cloud/internal/visits/domain"
)

type stubSource []visits.ZoneEvent

func (s stubSource) ZoneEvents(ctx context.Context, from, to time.Time) ([]visits.ZoneEvent, error) {
	return s, nil
}

type staticGrouper map[string]string

func (g staticGrouper) Resolve(zone string) string { return g[zone] }

func at(hour, minute int) time.Time {
	return time.Date(2025, time.December, 2, hour, minute, 0, 0, time.UTC)
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	source := stubSource{
		{Unit: "PM001", Zone: "FERASA", Kind: events.KindEntry, At: at(8, 0)},
		{Unit: "PM001", Zone: "FERASA", Kind: events.KindExit, At: at(9, 30)},
		{Unit: "PM002", Zone: "HIELERA-OCEANICE", Kind: events.KindEntry, At: at(10, 0)},
	}
	groups := staticGrouper{"FERASA": "CAMARONERAS", "HIELERA-OCEANICE": "HIELERAS"}
	service, err := visitapp.NewVisitService(log.New(io.Discard, "", 0), groups, source)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewHandler(service)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func get(handler http.Handler, url string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestListReturnsVisitsAsJSON(t *testing.T) {
	handler := newTestHandler(t)

	rec := get(handler, "/api/v1/zone-times")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var views []visitView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 visits, got %d", len(views))
	}
	// Newest first: the open HIELERA visit starts later.
	if views[0].Unit != "PM002" || views[0].End != nil {
		t.Fatalf("unexpected first visit %+v", views[0])
	}
	paired := views[1]
	if paired.Start == nil || *paired.Start != "2025-12-02T08:00:00Z" {
		t.Fatalf("unexpected start %v", paired.Start)
	}
	if paired.End == nil || *paired.End != "2025-12-02T09:30:00Z" {
		t.Fatalf("unexpected end %v", paired.End)
	}
	if paired.DurationMinutes == nil || *paired.DurationMinutes != 90 {
		t.Fatalf("unexpected duration %v", paired.DurationMinutes)
	}
	if paired.Group != "CAMARONERAS" {
		t.Fatalf("unexpected group %q", paired.Group)
	}
}

func TestListAppliesQueryFilters(t *testing.T) {
	handler := newTestHandler(t)

	rec := get(handler, "/api/v1/zone-times?group=HIELERAS")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var views []visitView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(views) != 1 || views[0].Unit != "PM002" {
		t.Fatalf("unexpected filtered result %+v", views)
	}
}

func TestListRejectsBadQuery(t *testing.T) {
	handler := newTestHandler(t)

	if rec := get(handler, "/api/v1/zone-times?from=ayer"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad from, got %d", rec.Code)
	}
	if rec := get(handler, "/api/v1/zone-times?limit=-1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
	if rec := get(handler, "/api/v1/zone-times?from=2025-12-02T10:00:00Z&to=2025-12-02T09:00:00Z"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted window, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/zone-times", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestExportXLSX(t *testing.T) {
	handler := newTestHandler(t)

	rec := get(handler, "/api/v1/exports/visits.xlsx")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="visits.xlsx"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatal("expected zip magic in xlsx export")
	}
}

func TestExportPDF(t *testing.T) {
	handler := newTestHandler(t)

	rec := get(handler, "/api/v1/exports/visits.pdf")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("expected pdf magic in export")
	}
}

func TestExportUnknownPath(t *testing.T) {
	handler := newTestHandler(t)

	if rec := get(handler, "/api/v1/exports/visits.csv"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
