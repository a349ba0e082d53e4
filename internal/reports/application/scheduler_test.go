package application

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	reports "geofleet-cloud/internal/reports/domain"
)

type syncCall struct {
	kind string
	from time.Time
	to   time.Time
}

type stubSyncer struct {
	calls []syncCall
	rows  map[string][]reports.Row
	errs  map[string]error
}

func (s *stubSyncer) SyncWindow(ctx context.Context, kind string, from, to time.Time) ([]reports.Row, error) {
	s.calls = append(s.calls, syncCall{kind: kind, from: from, to: to})
	if err := s.errs[kind]; err != nil {
		return nil, err
	}
	return s.rows[kind], nil
}

type stubStore struct {
	count    int64
	countErr error
	upserts  [][]reports.Row
}

func (s *stubStore) Upsert(ctx context.Context, rows []reports.Row) (reports.UpsertResult, error) {
	s.upserts = append(s.upserts, rows)
	return reports.UpsertResult{Inserted: len(rows)}, nil
}

func (s *stubStore) Count(ctx context.Context) (int64, error) {
	return s.count, s.countErr
}

func newTestScheduler(t *testing.T, syncer WindowSyncer, store Store) *Scheduler {
	t.Helper()
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	scheduler, err := NewScheduler(log.New(io.Discard, "", 0), syncer, store, cfg)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	scheduler.delay = func(ctx context.Context, d time.Duration) error { return nil }
	return scheduler
}

func TestRunOnceSyncsKindsSequentially(t *testing.T) {
	syncer := &stubSyncer{rows: map[string][]reports.Row{
		KindUnidades: {{Kind: KindUnidades, UnitLabel: "PM001"}},
	}}
	store := &stubStore{count: 10000}
	scheduler := newTestScheduler(t, syncer, store)

	now := time.Date(2025, time.December, 2, 13, 0, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return now }

	scheduler.runOnce(context.Background())

	if len(syncer.calls) != len(scheduler.cfg.KindOrder) {
		t.Fatalf("expected %d sync calls, got %d", len(scheduler.cfg.KindOrder), len(syncer.calls))
	}
	for i, kind := range scheduler.cfg.KindOrder {
		call := syncer.calls[i]
		if call.kind != kind {
			t.Fatalf("call %d: expected kind %s, got %s", i, kind, call.kind)
		}
		if !call.to.Equal(now) || !call.from.Equal(now.Add(-scheduler.cfg.Lookback)) {
			t.Fatalf("call %d: unexpected window %s..%s", i, call.from, call.to)
		}
	}
	if len(store.upserts) != 1 {
		t.Fatalf("only the kind with rows should upsert, got %d", len(store.upserts))
	}
}

func TestRunOnceContinuesPastFailingKind(t *testing.T) {
	syncer := &stubSyncer{
		errs: map[string]error{KindUnidades: reports.ErrSessionUnavailable},
		rows: map[string][]reports.Row{
			KindCamaroneras: {{Kind: KindCamaroneras, UnitLabel: "PM002"}},
		},
	}
	store := &stubStore{count: 10000}
	scheduler := newTestScheduler(t, syncer, store)

	scheduler.runOnce(context.Background())

	if len(syncer.calls) != len(scheduler.cfg.KindOrder) {
		t.Fatalf("a failing kind must not stop the cycle, got %d calls", len(syncer.calls))
	}
	if len(store.upserts) != 1 {
		t.Fatalf("expected surviving kind to upsert, got %d", len(store.upserts))
	}
}

func TestBackfillRunsWhenStoreIsSparse(t *testing.T) {
	syncer := &stubSyncer{}
	store := &stubStore{count: 12}
	scheduler := newTestScheduler(t, syncer, store)

	now := time.Date(2025, time.December, 2, 13, 0, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return now }

	scheduler.backfillIfNeeded(context.Background())

	if len(syncer.calls) != len(scheduler.cfg.KindOrder) {
		t.Fatalf("expected backfill for every kind, got %d calls", len(syncer.calls))
	}
	call := syncer.calls[0]
	if !call.from.Equal(now.Add(-scheduler.cfg.BackfillWindow)) {
		t.Fatalf("expected deep backfill window, got from=%s", call.from)
	}
}

func TestBackfillSkippedWhenStoreIsPopulated(t *testing.T) {
	syncer := &stubSyncer{}
	store := &stubStore{count: int64(10000)}
	scheduler := newTestScheduler(t, syncer, store)

	scheduler.backfillIfNeeded(context.Background())
	if len(syncer.calls) != 0 {
		t.Fatalf("expected no backfill, got %d calls", len(syncer.calls))
	}
}

func TestBackfillSkippedOnCountError(t *testing.T) {
	syncer := &stubSyncer{}
	store := &stubStore{countErr: errors.New("connection refused")}
	scheduler := newTestScheduler(t, syncer, store)

	scheduler.backfillIfNeeded(context.Background())
	if len(syncer.calls) != 0 {
		t.Fatalf("count failure must skip backfill, got %d calls", len(syncer.calls))
	}
}
