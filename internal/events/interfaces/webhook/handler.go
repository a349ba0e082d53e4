package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	events "geofleet-cloud/internal/events/domain"
	"geofleet-cloud/internal/observability/metrics"
)

// PathPrefix is the route prefix the handler expects; the final path segment
// names the geofence notification that fired.
const PathPrefix = "/webhooks/on-track/"

// Parser turns one notification string into an event. The only error is
// payload.ErrNoTemplate; the returned event still carries the raw payload.
type Parser interface {
	Parse(raw string) (events.RawEvent, error)
}

// StopSink receives unauthorized-stop events for alerting.
type StopSink interface {
	HandleStop(ctx context.Context, event events.RawEvent) error
}

// IngestHandler receives geofence notifications. The payload is a JSON
// object whose single key is the notification text; the value carries no
// information. Unparseable payloads are stored raw and acknowledged, so the
// sender never retries them.
type IngestHandler struct {
	repo   events.EventRepository
	parser Parser
	stops  StopSink
	logger *log.Logger
}

// NewIngestHandler constructs an ingest handler. stops may be nil.
func NewIngestHandler(repo events.EventRepository, parser Parser, stops StopSink, logger *log.Logger) (*IngestHandler, error) {
	if repo == nil {
		return nil, errors.New("webhook ingest: nil repository")
	}
	if parser == nil {
		return nil, errors.New("webhook ingest: nil parser")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{repo: repo, parser: parser, stops: stops, logger: logger}, nil
}

// ServeHTTP ingests one notification.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	webhookName := strings.TrimPrefix(r.URL.Path, PathPrefix)
	if webhookName == "" || strings.Contains(webhookName, "/") {
		http.Error(w, "missing geofence name", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("webhook ingest: read body error: %v", err)
		metrics.IncIngestError("read_body")
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	text, err := extractPayloadText(body)
	if err != nil {
		h.logger.Printf("webhook ingest: %v", err)
		metrics.IncIngestError("invalid_payload")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	event, parseErr := h.parser.Parse(text)
	if parseErr != nil {
		h.logger.Printf("webhook ingest: no template match for %q, storing raw", webhookName)
		metrics.IncIngestError("no_template")
	}
	event.WebhookName = webhookName
	event.ReceivedAt = started.UTC()

	if err := h.repo.Insert(r.Context(), event); err != nil {
		h.logger.Printf("webhook ingest: insert error: %v", err)
		metrics.ObserveIngest(metrics.ResultError, time.Since(started))
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}

	if event.Kind == events.KindUnauthorizedStop && h.stops != nil {
		if err := h.stops.HandleStop(r.Context(), event); err != nil {
			h.logger.Printf("webhook ingest: alert error: %v", err)
		}
	}

	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(started))
	resp := map[string]any{"parsed": event.Parsed(), "kind": string(event.Kind)}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// extractPayloadText pulls the notification text out of the single-key
// payload object. Keys are sorted so a malformed multi-key payload is still
// handled deterministically.
func extractPayloadText(body []byte) (string, error) {
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", errors.New("payload is not a json object")
	}
	if len(decoded) == 0 {
		return "", errors.New("payload object is empty")
	}
	keys := make([]string, 0, len(decoded))
	for key := range decoded {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys[0], nil
}
