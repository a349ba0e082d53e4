package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	reports "geofleet-cloud/internal/reports/domain"
	"geofleet-cloud/internal/wialon"
)

// Sessions yields a platform session id, or wialon.SentinelUnavailable.
type Sessions interface {
	Get(ctx context.Context) string
}

// ReportClient is the slice of the platform client the engine drives.
type ReportClient interface {
	ExecReport(ctx context.Context, sid string, req wialon.ExecReportRequest) error
	ReportStatus(ctx context.Context, sid string) (string, error)
	ApplyReportResult(ctx context.Context, sid string) (wialon.ApplyResult, error)
	SelectResultRows(ctx context.Context, sid string, tableIndex, from, to, level, unitInfo int) ([]wialon.ReportItem, error)
	CleanupResult(ctx context.Context, sid string) error
}

// Engine runs one report window end to end: session, submit, poll, fetch,
// cleanup. It holds no state between windows; the caller sequences kinds and
// never overlaps two windows of the same kind.
type Engine struct {
	logger  *log.Logger
	client  ReportClient
	session Sessions
	cfg     Config
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewEngine constructs an Engine.
func NewEngine(logger *log.Logger, client ReportClient, session Sessions, cfg Config) (*Engine, error) {
	if client == nil {
		return nil, errors.New("report engine: nil client")
	}
	if session == nil {
		return nil, errors.New("report engine: nil session source")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		logger:  logger,
		client:  client,
		session: session,
		cfg:     cfg,
		sleep:   sleepCtx,
	}, nil
}

// SyncWindow fetches every crossing of one report kind over [from, to].
// Failures abort the window and surface to the caller; only the final cleanup
// is best-effort. An empty result table is a valid empty window.
func (e *Engine) SyncWindow(ctx context.Context, kind string, from, to time.Time) ([]reports.Row, error) {
	kc, err := e.cfg.KindFor(kind)
	if err != nil {
		return nil, err
	}

	sid := e.session.Get(ctx)
	if sid == wialon.SentinelUnavailable {
		return nil, reports.ErrSessionUnavailable
	}

	err = e.client.ExecReport(ctx, sid, wialon.ExecReportRequest{
		ResourceID:  kc.ResourceID,
		TemplateID:  kc.TemplateID,
		ObjectID:    kc.ObjectID,
		ObjectSecID: kc.ObjectSecID,
		From:        from.Unix(),
		To:          to.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("exec %s report: %w", kind, err)
	}

	if err := e.awaitReport(ctx, sid); err != nil {
		return nil, err
	}

	applied, err := e.client.ApplyReportResult(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("apply %s report: %w", kind, err)
	}
	tables := applied.ReportResult.Tables
	if len(tables) == 0 || tables[0].Rows == 0 {
		e.cleanup(ctx, sid)
		return nil, nil
	}

	items, err := e.client.SelectResultRows(ctx, sid, 0, 0, tables[0].Rows-1, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch %s report rows: %w", kind, err)
	}
	e.cleanup(ctx, sid)

	return e.translate(kind, items), nil
}

func (e *Engine) awaitReport(ctx context.Context, sid string) error {
	for attempt := 1; attempt <= e.cfg.MaxPollAttempts; attempt++ {
		status, err := e.client.ReportStatus(ctx, sid)
		if err != nil {
			return fmt.Errorf("poll report status: %w", err)
		}
		switch status {
		case wialon.StatusDone:
			return nil
		case wialon.StatusFailed:
			return reports.ErrReportFailed
		}
		if err := e.sleep(ctx, e.cfg.PollInterval); err != nil {
			return err
		}
	}
	return reports.ErrReportTimeout
}

func (e *Engine) cleanup(ctx context.Context, sid string) {
	if err := e.client.CleanupResult(ctx, sid); err != nil {
		e.logger.Printf("report engine: cleanup failed: %v", err)
	}
}

// translate flattens report items into crossings. Top-level items aggregate
// one unit over the whole window; the crossings live in their sub-rows.
func (e *Engine) translate(kind string, items []wialon.ReportItem) []reports.Row {
	var result []reports.Row
	for _, item := range items {
		for _, sub := range item.R {
			if len(sub.C) < 5 {
				e.logger.Printf("report engine: short row (%d cells), skipping", len(sub.C))
				continue
			}
			result = append(result, reports.Row{
				Kind:          kind,
				SourceUnitID:  sub.UID,
				UnitLabel:     sub.C[0].Text,
				ZoneLabel:     sub.C[1].Text,
				Entry:         toSample(sub.C[2].Point),
				Exit:          toSample(sub.C[3].Point),
				IntervalStart: time.Unix(sub.T1, 0).UTC(),
				IntervalEnd:   time.Unix(sub.T2, 0).UTC(),
				DurationLabel: sub.C[4].Text,
			})
		}
	}
	return result
}

func toSample(p *wialon.Point) *reports.Sample {
	if p == nil {
		return nil
	}
	return &reports.Sample{
		LocalText: p.T,
		At:        time.Unix(p.V, 0).UTC(),
		Lon:       p.X,
		Lat:       p.Y,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
