package integration_test

import (
	"context"
	"database/sql"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	reports "geofleet-cloud/internal/reports/domain"
	reportrepo "geofleet-cloud/internal/reports/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestReportUpsert_IdempotentAcrossOverlappingWindows(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyReportMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM report_rows")

	repo := reportrepo.NewReportRepository(db, log.New(io.Discard, "", 0))

	start := time.Date(2025, time.December, 2, 13, 15, 7, 0, time.UTC)
	rows := []reports.Row{
		crossing(600489149, "PM001", "FERASA", start, start.Add(22*time.Minute)),
		crossing(600489149, "PM001", "LUKMAR", start.Add(time.Hour), start.Add(90*time.Minute)),
		crossing(600489150, "PM002", "FERASA", start, start.Add(10*time.Minute)),
	}

	first, err := repo.Upsert(ctx, rows)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Inserted != 3 || first.Updated != 0 || first.Unchanged != 0 {
		t.Fatalf("unexpected first result %+v", first)
	}

	// Re-syncing the identical window changes nothing.
	second, err := repo.Upsert(ctx, rows)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Inserted != 0 || second.Updated != 0 || second.Unchanged != 3 {
		t.Fatalf("unexpected second result %+v", second)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 stored rows, got %d", count)
	}

	// A crossing still open on the previous sync closes later: its interval
	// end moves and exactly that row updates.
	moved := rows
	moved[0].IntervalEnd = moved[0].IntervalEnd.Add(15 * time.Minute)
	third, err := repo.Upsert(ctx, moved)
	if err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	if third.Inserted != 0 || third.Updated != 1 || third.Unchanged != 2 {
		t.Fatalf("unexpected third result %+v", third)
	}

	stored, err := repo.List(ctx, reports.ListFilter{Unit: "PM001", Zone: "FERASA"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 row, got %d", len(stored))
	}
	if !stored[0].IntervalEnd.Equal(moved[0].IntervalEnd) {
		t.Fatalf("interval end not updated: %s", stored[0].IntervalEnd)
	}
}

func TestReportZoneEvents_FlattenToEntryExit(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyReportMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM report_rows")

	repo := reportrepo.NewReportRepository(db, log.New(io.Discard, "", 0))

	start := time.Date(2025, time.December, 2, 13, 15, 7, 0, time.UTC)
	full := crossing(600489149, "PM001", "FERASA", start, start.Add(22*time.Minute))
	open := crossing(600489149, "PM001", "LUKMAR", start.Add(time.Hour), start.Add(2*time.Hour))
	open.Exit = nil

	if _, err := repo.Upsert(ctx, []reports.Row{full, open}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	zoneEvents, err := repo.ZoneEvents(ctx, start.Add(-time.Hour), start.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("zone events: %v", err)
	}
	if len(zoneEvents) != 3 {
		t.Fatalf("expected 3 observations (entry+exit, entry), got %d", len(zoneEvents))
	}
}

func crossing(unitID int64, unit, zone string, entry, exit time.Time) reports.Row {
	return reports.Row{
		Kind:          "CAMARONERAS",
		SourceUnitID:  unitID,
		UnitLabel:     unit,
		ZoneLabel:     zone,
		Entry:         &reports.Sample{LocalText: entry.Format("02.01.2006 15:04:05"), At: entry, Lon: -79.83, Lat: -2.17},
		Exit:          &reports.Sample{LocalText: exit.Format("02.01.2006 15:04:05"), At: exit, Lon: -79.82, Lat: -2.16},
		IntervalStart: entry,
		IntervalEnd:   exit,
		DurationLabel: "0:22:56",
	}
}

func applyReportMigrations(db *sql.DB) error {
	content, err := os.ReadFile(filepath.Join(projectRoot(), "migrations", "002_report_rows.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(content))
	return err
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}
