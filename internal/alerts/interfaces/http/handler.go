package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	alertapp "geofleet-cloud/internal/alerts/application"
	alerts "geofleet-cloud/internal/alerts/domain"
)

const timeLayout = time.RFC3339

// Handler provides the alerts HTTP endpoint.
type Handler struct {
	service *alertapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *alertapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("alerts handler: nil service")
	}
	return &Handler{service: service}, nil
}

type alertView struct {
	ID        int64   `json:"id"`
	Unit      string  `json:"unit"`
	LocalTime string  `json:"localTime"`
	UTCTime   *string `json:"utcTime"`
	Location  string  `json:"location"`
	Notified  bool    `json:"notified"`
	CreatedAt string  `json:"createdAt"`
}

// ServeHTTP handles GET /api/v1/alerts.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	list, err := h.service.List(r.Context(), from, to, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]alertView, 0, len(list))
	for _, alert := range list {
		views = append(views, toView(alert))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
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

func toView(alert alerts.Alert) alertView {
	view := alertView{
		ID:        alert.ID,
		Unit:      alert.UnitLabel,
		LocalTime: alert.LocalTime,
		Location:  alert.Location,
		Notified:  alert.Notified,
		CreatedAt: alert.CreatedAt.UTC().Format(timeLayout),
	}
	if alert.UTCTime != nil {
		formatted := alert.UTCTime.UTC().Format(timeLayout)
		view.UTCTime = &formatted
	}
	return view
}
