package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	reports "geofleet-cloud/internal/reports/domain"
)

const (
	timeLayout   = time.RFC3339
	defaultLimit = 100
	maxLimit     = 1000
)

// RowLister serves stored report rows. Implemented by the postgres store.
type RowLister interface {
	List(ctx context.Context, filter reports.ListFilter) ([]reports.Row, error)
}

// Handler provides the report rows HTTP endpoint.
type Handler struct {
	store RowLister
}

// NewHandler constructs a handler.
func NewHandler(store RowLister) (*Handler, error) {
	if store == nil {
		return nil, errors.New("reports handler: nil store")
	}
	return &Handler{store: store}, nil
}

type sampleView struct {
	LocalText string  `json:"localText"`
	At        string  `json:"at"`
	Lon       float64 `json:"lon"`
	Lat       float64 `json:"lat"`
}

type rowView struct {
	Kind          string      `json:"kind"`
	SourceUnitID  int64       `json:"sourceUnitId"`
	Unit          string      `json:"unit"`
	Zone          string      `json:"zone"`
	Entry         *sampleView `json:"entry"`
	Exit          *sampleView `json:"exit"`
	IntervalStart string      `json:"intervalStart"`
	IntervalEnd   string      `json:"intervalEnd"`
	DurationLabel string      `json:"durationLabel"`
}

// ServeHTTP handles GET /api/v1/reports.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := h.store.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]rowView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toView(row))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

func parseFilter(r *http.Request) (reports.ListFilter, error) {
	filter := reports.ListFilter{
		Kind:  r.URL.Query().Get("kind"),
		Unit:  r.URL.Query().Get("unit"),
		Zone:  r.URL.Query().Get("zone"),
		Limit: defaultLimit,
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return reports.ListFilter{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return reports.ListFilter{}, err
	}
	filter.From, filter.To = from, to

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return reports.ListFilter{}, errors.New("limit must be a positive integer")
		}
		if limit > maxLimit {
			limit = maxLimit
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return reports.ListFilter{}, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	return filter, nil
}

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

func toView(row reports.Row) rowView {
	return rowView{
		Kind:          row.Kind,
		SourceUnitID:  row.SourceUnitID,
		Unit:          row.UnitLabel,
		Zone:          row.ZoneLabel,
		Entry:         toSampleView(row.Entry),
		Exit:          toSampleView(row.Exit),
		IntervalStart: row.IntervalStart.UTC().Format(timeLayout),
		IntervalEnd:   row.IntervalEnd.UTC().Format(timeLayout),
		DurationLabel: row.DurationLabel,
	}
}

func toSampleView(sample *reports.Sample) *sampleView {
	if sample == nil {
		return nil
	}
	return &sampleView{
		LocalText: sample.LocalText,
		At:        sample.At.UTC().Format(timeLayout),
		Lon:       sample.Lon,
		Lat:       sample.Lat,
	}
}
