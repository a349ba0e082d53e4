package application

import (
	"context"
	"errors"
	"log"
	"time"

	"geofleet-cloud/internal/observability/metrics"
	reports "geofleet-cloud/internal/reports/domain"
)

// WindowSyncer fetches one report window. Implemented by Engine.
type WindowSyncer interface {
	SyncWindow(ctx context.Context, kind string, from, to time.Time) ([]reports.Row, error)
}

// Store persists fetched rows and answers the backfill check.
type Store interface {
	Upsert(ctx context.Context, rows []reports.Row) (reports.UpsertResult, error)
	Count(ctx context.Context) (int64, error)
}

// Scheduler drives report syncs: once at startup (with a deep backfill when
// the store is near-empty) and then every minute over the configured
// lookback. Kinds run sequentially with a fixed delay between them so the
// remote's concurrent-session budget is never exceeded.
type Scheduler struct {
	logger *log.Logger
	syncer WindowSyncer
	store  Store
	cfg    Config
	now    func() time.Time
	delay  func(ctx context.Context, d time.Duration) error
}

// NewScheduler constructs a Scheduler.
func NewScheduler(logger *log.Logger, syncer WindowSyncer, store Store, cfg Config) (*Scheduler, error) {
	if syncer == nil {
		return nil, errors.New("report scheduler: nil syncer")
	}
	if store == nil {
		return nil, errors.New("report scheduler: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		logger: logger,
		syncer: syncer,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		delay:  sleepCtx,
	}, nil
}

// Start begins the scheduler loop. It blocks until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.backfillIfNeeded(ctx)
	s.runOnce(ctx)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// backfillIfNeeded syncs the deep backfill window when the store holds fewer
// rows than the threshold, so a fresh deployment starts with history.
func (s *Scheduler) backfillIfNeeded(ctx context.Context) {
	count, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Printf("report scheduler: backfill check failed: %v", err)
		return
	}
	if count >= int64(s.cfg.BackfillThreshold) {
		return
	}

	now := s.now().UTC()
	s.logger.Printf("report scheduler: store has %d rows (< %d), backfilling %s",
		count, s.cfg.BackfillThreshold, s.cfg.BackfillWindow)
	s.syncKinds(ctx, now.Add(-s.cfg.BackfillWindow), now)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	now := s.now().UTC()
	s.syncKinds(ctx, now.Add(-s.cfg.Lookback), now)
}

func (s *Scheduler) syncKinds(ctx context.Context, from, to time.Time) {
	for i, kind := range s.cfg.KindOrder {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			if err := s.delay(ctx, s.cfg.InterKindDelay); err != nil {
				return
			}
		}
		s.syncKind(ctx, kind, from, to)
	}
}

func (s *Scheduler) syncKind(ctx context.Context, kind string, from, to time.Time) {
	started := s.now()
	rows, err := s.syncer.SyncWindow(ctx, kind, from, to)
	if err != nil {
		metrics.ObserveSync(kind, metrics.ResultError, s.now().Sub(started))
		s.logger.Printf("report scheduler: sync %s %s..%s failed: %v",
			kind, from.Format(time.RFC3339), to.Format(time.RFC3339), err)
		return
	}
	metrics.ObserveSync(kind, metrics.ResultSuccess, s.now().Sub(started))
	metrics.AddSyncRows(kind, len(rows))

	if len(rows) == 0 {
		return
	}
	result, err := s.store.Upsert(ctx, rows)
	if err != nil {
		s.logger.Printf("report scheduler: upsert %s rows failed: %v", kind, err)
		return
	}
	metrics.AddUpsertActions(metrics.UpsertInserted, result.Inserted)
	metrics.AddUpsertActions(metrics.UpsertUpdated, result.Updated)
	metrics.AddUpsertActions(metrics.UpsertUnchanged, result.Unchanged)
	s.logger.Printf("report scheduler: %s synced rows=%d inserted=%d updated=%d unchanged=%d",
		kind, len(rows), result.Inserted, result.Updated, result.Unchanged)
}
