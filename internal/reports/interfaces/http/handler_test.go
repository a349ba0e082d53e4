package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	reports "geofleet-cloud/internal/reports/domain"
)

type stubLister struct {
	filter reports.ListFilter
	rows   []reports.Row
}

func (s *stubLister) List(ctx context.Context, filter reports.ListFilter) ([]reports.Row, error) {
	s.filter = filter
	return s.rows, nil
}

func sampleRow() reports.Row {
	entry := time.Date(2025, time.December, 2, 13, 0, 0, 0, time.UTC)
	exit := entry.Add(15 * time.Minute)
	return reports.Row{
		Kind:         "CAMARONERAS",
		SourceUnitID: 600489149,
		UnitLabel:    "PM001",
		ZoneLabel:    "FERASA",
		Entry:        &reports.Sample{LocalText: "02.12.2025 08:00:00", At: entry, Lon: -79.9, Lat: -2.2},
		Exit:         &reports.Sample{LocalText: "02.12.2025 08:15:00", At: exit, Lon: -79.9, Lat: -2.2},
		IntervalStart: entry,
		IntervalEnd:   exit,
		DurationLabel: "0:15:00",
	}
}

func TestListReturnsRowsAsJSON(t *testing.T) {
	store := &stubLister{rows: []reports.Row{sampleRow()}}
	handler, err := NewHandler(store)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var views []rowView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 row, got %d", len(views))
	}
	view := views[0]
	if view.Unit != "PM001" || view.Zone != "FERASA" {
		t.Fatalf("unexpected row %+v", view)
	}
	if view.Entry == nil || view.Entry.At != "2025-12-02T13:00:00Z" {
		t.Fatalf("unexpected entry %+v", view.Entry)
	}
	if store.filter.Limit != defaultLimit {
		t.Fatalf("expected default limit, got %d", store.filter.Limit)
	}
}

func TestListParsesFilters(t *testing.T) {
	store := &stubLister{}
	handler, err := NewHandler(store)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	url := "/api/v1/reports?kind=UNIDADES&unit=PM001&zone=FERASA" +
		"&from=2025-12-01T00:00:00Z&to=2025-12-03T00:00:00Z&limit=10&offset=20"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	filter := store.filter
	if filter.Kind != "UNIDADES" || filter.Unit != "PM001" || filter.Zone != "FERASA" {
		t.Fatalf("unexpected filter %+v", filter)
	}
	if filter.Limit != 10 || filter.Offset != 20 {
		t.Fatalf("unexpected paging %+v", filter)
	}
	if filter.From.IsZero() || filter.To.IsZero() {
		t.Fatalf("expected time window, got %+v", filter)
	}
}

func TestListRejectsBadQuery(t *testing.T) {
	handler, err := NewHandler(&stubLister{})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	for _, url := range []string{
		"/api/v1/reports?from=ayer",
		"/api/v1/reports?limit=0",
		"/api/v1/reports?offset=-1",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", url, rec.Code)
		}
	}
}

func TestListCapsLimit(t *testing.T) {
	store := &stubLister{}
	handler, err := NewHandler(store)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports?limit=99999", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if store.filter.Limit != maxLimit {
		t.Fatalf("expected capped limit %d, got %d", maxLimit, store.filter.Limit)
	}
}
