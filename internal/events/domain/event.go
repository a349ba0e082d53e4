package events

import (
	"context"
	"time"
)

// EventKind classifies a geofence occurrence.
type EventKind string

const (
	KindEntry            EventKind = "ENTRY"
	KindExit             EventKind = "EXIT"
	KindUnauthorizedStop EventKind = "UNAUTHORIZED_STOP"
)

// RawEvent is one ingested geofence occurrence. Created once at ingestion,
// immutable afterwards; retention is handled outside this service.
type RawEvent struct {
	Kind        EventKind
	Unit        string
	Zone        string
	Group       string
	LocalTime   string
	UTCTime     *time.Time
	Speed       string
	Location    string
	WebhookName string
	RawPayload  string
	ReceivedAt  time.Time
}

// Parsed reports whether the payload matched one of the known templates.
func (e RawEvent) Parsed() bool {
	return e.Kind != ""
}

// EventRepository persists raw geofence events.
type EventRepository interface {
	Insert(ctx context.Context, event RawEvent) error
}
