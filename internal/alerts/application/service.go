package application

import (
	"context"
	"errors"
	"log"
	"time"

	alerts "geofleet-cloud/internal/alerts/domain"
	"geofleet-cloud/internal/alerts/notify"
	events "geofleet-cloud/internal/events/domain"
	"geofleet-cloud/internal/observability/metrics"
	"geofleet-cloud/internal/retry"
)

const (
	notifyAttempts = 3
	notifyBackoff  = 2 * time.Second
)

// Service turns unauthorized-stop events into persisted alerts and pushes
// them to the notification channel. Notification failure never fails the
// ingest path; the alert stays stored with notified=false.
type Service struct {
	logger   *log.Logger
	repo     alerts.AlertRepository
	channel  notify.Channel
	attempts int
	backoff  time.Duration
}

// Option configures the service.
type Option func(*Service)

// WithNotifyRetry overrides the notification retry policy.
func WithNotifyRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

// NewService constructs an alert service. channel may be nil when no
// receiver is configured.
func NewService(logger *log.Logger, repo alerts.AlertRepository, channel notify.Channel, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("alert service: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		logger:   logger,
		repo:     repo,
		channel:  channel,
		attempts: notifyAttempts,
		backoff:  notifyBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// HandleStop persists the stop event as an alert and notifies the channel.
func (s *Service) HandleStop(ctx context.Context, event events.RawEvent) error {
	alert := alerts.Alert{
		UnitLabel:  event.Unit,
		LocalTime:  event.LocalTime,
		UTCTime:    event.UTCTime,
		Location:   event.Location,
		RawPayload: event.RawPayload,
		CreatedAt:  time.Now().UTC(),
	}
	id, err := s.repo.Insert(ctx, alert)
	if err != nil {
		return err
	}
	metrics.IncAlertEvent(metrics.AlertCreated)

	if s.channel == nil {
		return nil
	}
	alert.ID = id
	err = retry.Do(ctx, s.attempts, s.backoff, func(ctx context.Context) error {
		return s.channel.Send(ctx, alert)
	})
	if err != nil {
		s.logger.Printf("alert service: notify failed for alert %d: %v", id, err)
		metrics.IncAlertEvent(metrics.AlertNotifyFailed)
		return nil
	}
	metrics.IncAlertEvent(metrics.AlertNotified)
	if err := s.repo.MarkNotified(ctx, id); err != nil {
		s.logger.Printf("alert service: mark notified failed for alert %d: %v", id, err)
	}
	return nil
}

// List returns alerts for the window, newest first.
func (s *Service) List(ctx context.Context, from, to time.Time, limit int) ([]alerts.Alert, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	return s.repo.List(ctx, from, to, limit)
}
