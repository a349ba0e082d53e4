package alerts

import (
	"context"
	"time"
)

// Alert records one unauthorized stop reported by the tracking platform.
type Alert struct {
	ID         int64
	UnitLabel  string
	LocalTime  string
	UTCTime    *time.Time
	Location   string
	RawPayload string
	Notified   bool
	CreatedAt  time.Time
}

// AlertRepository persists alerts.
type AlertRepository interface {
	Insert(ctx context.Context, alert Alert) (int64, error)
	MarkNotified(ctx context.Context, id int64) error
	List(ctx context.Context, from, to time.Time, limit int) ([]Alert, error)
}
