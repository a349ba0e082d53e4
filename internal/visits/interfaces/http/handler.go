package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"geofleet-cloud/internal/observability/metrics"
	visitapp "geofleet-cloud/internal/visits/application"
	visits "geofleet-cloud/internal/visits/domain"
	visitexport "geofleet-cloud/internal/visits/interfaces"
)

const timeLayout = time.RFC3339

// Handler provides the zone-times HTTP endpoints.
type Handler struct {
	service *visitapp.VisitService
}

// NewHandler constructs a handler.
func NewHandler(service *visitapp.VisitService) (*Handler, error) {
	if service == nil {
		return nil, errors.New("visits handler: nil service")
	}
	return &Handler{service: service}, nil
}

// visitView is the wire shape of one visit. Timestamps are RFC3339 UTC;
// start, end and duration are null when the visit half is missing.
type visitView struct {
	Unit            string   `json:"unit"`
	Zone            string   `json:"zone"`
	Group           string   `json:"group"`
	Start           *string  `json:"start"`
	End             *string  `json:"end"`
	DurationMinutes *float64 `json:"durationMinutes"`
}

// ServeHTTP handles /api/v1/zone-times and /api/v1/exports/visits.{xlsx,pdf}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/zone-times":
		h.handleList(w, r)
	case "/api/v1/exports/visits.xlsx":
		h.handleExport(w, r, "xlsx")
	case "/api/v1/exports/visits.pdf":
		h.handleExport(w, r, "pdf")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	list, err := h.service.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]visitView, 0, len(list))
	for _, visit := range list {
		views = append(views, toView(visit))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	started := time.Now()

	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	list, err := h.service.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	title := exportTitle(filter)
	var payload []byte
	switch format {
	case "pdf":
		payload, err = visitexport.BuildVisitsPDF(title, list)
	default:
		payload, err = visitexport.BuildVisitsXLSX(title, list)
	}
	if err != nil {
		metrics.ObserveVisitExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveVisitExport(format, metrics.ResultSuccess, time.Since(started))

	filename := "visits." + format
	if format == "pdf" {
		w.Header().Set("Content-Type", "application/pdf")
	} else {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(payload)
}

func parseFilter(r *http.Request) (visitapp.QueryFilter, error) {
	filter := visitapp.QueryFilter{
		Unit:  r.URL.Query().Get("unit"),
		Zone:  r.URL.Query().Get("zone"),
		Group: r.URL.Query().Get("group"),
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return visitapp.QueryFilter{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return visitapp.QueryFilter{}, err
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return visitapp.QueryFilter{}, errors.New("to must be after from")
	}
	filter.From, filter.To = from, to

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return visitapp.QueryFilter{}, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

// parseTimeQuery reads an optional RFC3339 query parameter.
func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func exportTitle(filter visitapp.QueryFilter) string {
	switch {
	case filter.Unit != "":
		return "Unit " + filter.Unit
	case filter.Zone != "":
		return "Zone " + filter.Zone
	case filter.Group != "":
		return "Group " + filter.Group
	}
	return ""
}

func toView(visit visits.Visit) visitView {
	view := visitView{
		Unit:            visit.Unit,
		Zone:            visit.Zone,
		Group:           visit.Group,
		DurationMinutes: visit.DurationMinutes,
	}
	if visit.Start != nil {
		formatted := visit.Start.UTC().Format(timeLayout)
		view.Start = &formatted
	}
	if visit.End != nil {
		formatted := visit.End.UTC().Format(timeLayout)
		view.End = &formatted
	}
	return view
}
