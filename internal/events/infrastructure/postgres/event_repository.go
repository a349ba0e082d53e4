package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	events "geofleet-cloud/internal/events/domain"
	visits "geofleet-cloud/internal/visits/domain"
)

const defaultEventsTable = "geofence_events"

// EventRepository is a Postgres implementation for geofence events. Events
// are append-only; parse failures are stored with an empty kind and the raw
// payload preserved.
type EventRepository struct {
	db    *sql.DB
	table string
}

// NewEventRepository constructs a repository.
func NewEventRepository(db *sql.DB, opts ...EventOption) *EventRepository {
	repo := &EventRepository{db: db, table: defaultEventsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// EventOption configures the repository.
type EventOption func(*EventRepository)

// WithEventsTable overrides the table name.
func WithEventsTable(table string) EventOption {
	return func(repo *EventRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Insert stores one event.
func (r *EventRepository) Insert(ctx context.Context, event events.RawEvent) error {
	if r == nil || r.db == nil {
		return errors.New("event repo: nil db")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	kind,
	unit_label,
	zone_label,
	zone_group,
	local_time,
	utc_time,
	speed,
	location,
	webhook_name,
	raw_payload,
	received_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)`, r.table)

	utcTime := sql.NullTime{}
	if event.UTCTime != nil {
		utcTime = sql.NullTime{Time: event.UTCTime.UTC(), Valid: true}
	}
	receivedAt := event.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		string(event.Kind),
		event.Unit,
		event.Zone,
		event.Group,
		event.LocalTime,
		utcTime,
		event.Speed,
		event.Location,
		event.WebhookName,
		event.RawPayload,
		receivedAt.UTC(),
	)
	return err
}

// ZoneEvents loads parsed entry/exit events in [from, to] as reconciler
// observations. Events without a normalized timestamp or zone are skipped.
func (r *EventRepository) ZoneEvents(ctx context.Context, from, to time.Time) ([]visits.ZoneEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT unit_label, zone_label, kind, utc_time
FROM %s
WHERE kind IN ($1, $2)
  AND zone_label <> ''
  AND utc_time IS NOT NULL
  AND utc_time >= $3
  AND utc_time <= $4
ORDER BY utc_time ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query,
		string(events.KindEntry), string(events.KindExit), from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []visits.ZoneEvent
	for rows.Next() {
		var event visits.ZoneEvent
		var kind string
		var at time.Time
		if err := rows.Scan(&event.Unit, &event.Zone, &kind, &at); err != nil {
			return nil, err
		}
		event.Kind = events.EventKind(kind)
		event.At = at.UTC()
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
