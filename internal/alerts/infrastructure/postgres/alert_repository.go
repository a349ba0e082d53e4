package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	alerts "geofleet-cloud/internal/alerts/domain"
)

const defaultAlertsTable = "alerts"

// AlertRepository stores alerts in Postgres.
type AlertRepository struct {
	db    *sql.DB
	table string
}

// Option configures the repository.
type Option func(*AlertRepository)

// WithAlertsTable overrides the table name.
func WithAlertsTable(table string) Option {
	return func(r *AlertRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB, opts ...Option) (*AlertRepository, error) {
	if db == nil {
		return nil, errors.New("alert repository: nil db")
	}
	r := &AlertRepository{db: db, table: defaultAlertsTable}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Insert stores one alert and returns its id.
func (r *AlertRepository) Insert(ctx context.Context, alert alerts.Alert) (int64, error) {
	if alert.UnitLabel == "" {
		return 0, errors.New("alert repository: empty unit label")
	}
	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var utcTime sql.NullTime
	if alert.UTCTime != nil {
		utcTime = sql.NullTime{Time: alert.UTCTime.UTC(), Valid: true}
	}
	query := fmt.Sprintf(`INSERT INTO %s
        (unit_label, local_time, utc_time, location, raw_payload, notified, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id`, r.table)
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		alert.UnitLabel, alert.LocalTime, utcTime,
		alert.Location, alert.RawPayload, alert.Notified, createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert alert: %w", err)
	}
	return id, nil
}

// MarkNotified flips the notified flag.
func (r *AlertRepository) MarkNotified(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`UPDATE %s SET notified = TRUE WHERE id = $1`, r.table)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark alert notified: %w", err)
	}
	return nil
}

// List returns alerts created in [from, to], newest first.
func (r *AlertRepository) List(ctx context.Context, from, to time.Time, limit int) ([]alerts.Alert, error) {
	query := fmt.Sprintf(`SELECT id, unit_label, local_time, utc_time, location, raw_payload, notified, created_at
        FROM %s
        WHERE created_at >= $1 AND created_at <= $2
        ORDER BY created_at DESC`, r.table)
	args := []any{from.UTC(), to.UTC()}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var result []alerts.Alert
	for rows.Next() {
		var (
			alert   alerts.Alert
			utcTime sql.NullTime
		)
		if err := rows.Scan(&alert.ID, &alert.UnitLabel, &alert.LocalTime, &utcTime,
			&alert.Location, &alert.RawPayload, &alert.Notified, &alert.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if utcTime.Valid {
			t := utcTime.Time.UTC()
			alert.UTCTime = &t
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}
