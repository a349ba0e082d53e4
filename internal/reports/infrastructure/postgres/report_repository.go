package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	events "geofleet-cloud/internal/events/domain"
	reports "geofleet-cloud/internal/reports/domain"
	visits "geofleet-cloud/internal/visits/domain"
)

const defaultReportRowsTable = "report_rows"

// ReportRepository is a Postgres implementation of the report row store.
// Rows are keyed by their natural key so overlapping sync windows never
// create duplicates.
type ReportRepository struct {
	db     *sql.DB
	logger *log.Logger
	table  string
}

// NewReportRepository constructs a repository.
func NewReportRepository(db *sql.DB, logger *log.Logger, opts ...ReportOption) *ReportRepository {
	if logger == nil {
		logger = log.Default()
	}
	repo := &ReportRepository{db: db, logger: logger, table: defaultReportRowsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ReportOption configures the repository.
type ReportOption func(*ReportRepository)

// WithReportRowsTable overrides the table name.
func WithReportRowsTable(table string) ReportOption {
	return func(repo *ReportRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Upsert stores a batch of fetched rows. New keys are bulk-inserted in one
// transaction; rows whose interval end moved are updated one by one so a
// failing update never blocks the rest of the batch.
func (r *ReportRepository) Upsert(ctx context.Context, rows []reports.Row) (reports.UpsertResult, error) {
	var result reports.UpsertResult
	if r == nil || r.db == nil {
		return result, errors.New("report repo: nil db")
	}
	if len(rows) == 0 {
		return result, nil
	}

	var inserts, updates []reports.Row
	for _, row := range rows {
		existingEnd, err := r.findIntervalEnd(ctx, row.NaturalKey())
		if err != nil {
			return result, err
		}
		switch reports.ClassifyUpsert(existingEnd, row) {
		case reports.ActionInsert:
			inserts = append(inserts, row)
		case reports.ActionUpdate:
			updates = append(updates, row)
		case reports.ActionUnchanged:
			result.Unchanged++
		}
	}

	if err := r.bulkInsert(ctx, inserts); err != nil {
		return result, err
	}
	result.Inserted = len(inserts)

	for _, row := range updates {
		if err := r.update(ctx, row); err != nil {
			r.logger.Printf("report repo: update %s failed: %v", row.NaturalKey(), err)
			continue
		}
		result.Updated++
	}
	return result, nil
}

func (r *ReportRepository) findIntervalEnd(ctx context.Context, key reports.Key) (*time.Time, error) {
	query := fmt.Sprintf(`
SELECT interval_end
FROM %s
WHERE source_unit_id = $1 AND unit_label = $2 AND interval_start = $3`, r.table)

	var end time.Time
	err := r.db.QueryRowContext(ctx, query, key.SourceUnitID, key.UnitLabel, key.IntervalStart).Scan(&end)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	end = end.UTC()
	return &end, nil
}

func (r *ReportRepository) bulkInsert(ctx context.Context, rows []reports.Row) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	kind,
	source_unit_id,
	unit_label,
	zone_label,
	entry_text,
	entry_at,
	entry_lon,
	entry_lat,
	exit_text,
	exit_at,
	exit_lon,
	exit_lat,
	interval_start,
	interval_end,
	duration_label
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
)
ON CONFLICT (source_unit_id, unit_label, interval_start) DO NOTHING`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if row.UnitLabel == "" || row.IntervalStart.IsZero() {
			_ = tx.Rollback()
			return errors.New("report repo: invalid row")
		}
		args := append([]any{
			row.Kind,
			row.SourceUnitID,
			row.UnitLabel,
			row.ZoneLabel,
		}, sampleArgs(row.Entry)...)
		args = append(args, sampleArgs(row.Exit)...)
		args = append(args,
			row.IntervalStart.UTC(),
			row.IntervalEnd.UTC(),
			row.DurationLabel,
		)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *ReportRepository) update(ctx context.Context, row reports.Row) error {
	query := fmt.Sprintf(`
UPDATE %s SET
	kind = $4,
	zone_label = $5,
	entry_text = $6,
	entry_at = $7,
	entry_lon = $8,
	entry_lat = $9,
	exit_text = $10,
	exit_at = $11,
	exit_lon = $12,
	exit_lat = $13,
	interval_end = $14,
	duration_label = $15,
	updated_at = NOW()
WHERE source_unit_id = $1 AND unit_label = $2 AND interval_start = $3`, r.table)

	args := []any{
		row.SourceUnitID,
		row.UnitLabel,
		row.IntervalStart.UTC(),
		row.Kind,
		row.ZoneLabel,
	}
	args = append(args, sampleArgs(row.Entry)...)
	args = append(args, sampleArgs(row.Exit)...)
	args = append(args, row.IntervalEnd.UTC(), row.DurationLabel)

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func sampleArgs(s *reports.Sample) []any {
	if s == nil {
		return []any{sql.NullString{}, sql.NullTime{}, sql.NullFloat64{}, sql.NullFloat64{}}
	}
	return []any{
		sql.NullString{String: s.LocalText, Valid: true},
		sql.NullTime{Time: s.At.UTC(), Valid: true},
		sql.NullFloat64{Float64: s.Lon, Valid: true},
		sql.NullFloat64{Float64: s.Lat, Valid: true},
	}
}

// Count returns the number of stored rows.
func (r *ReportRepository) Count(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("report repo: nil db")
	}
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// List returns stored rows ordered by interval start descending.
func (r *ReportRepository) List(ctx context.Context, filter reports.ListFilter) ([]reports.Row, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT kind, source_unit_id, unit_label, zone_label,
	entry_text, entry_at, entry_lon, entry_lat,
	exit_text, exit_at, exit_lon, exit_lat,
	interval_start, interval_end, duration_label
FROM %s
WHERE 1=1`, r.table)

	var args []any
	idx := 1
	addArg := func(clause string, value any) {
		query += fmt.Sprintf(" AND %s $%d", clause, idx)
		args = append(args, value)
		idx++
	}
	if filter.Kind != "" {
		addArg("kind =", filter.Kind)
	}
	if filter.Unit != "" {
		addArg("unit_label =", filter.Unit)
	}
	if filter.Zone != "" {
		addArg("zone_label =", filter.Zone)
	}
	if !filter.From.IsZero() {
		addArg("interval_start >=", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		addArg("interval_start <=", filter.To.UTC())
	}
	query += " ORDER BY interval_start DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reports.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ZoneEvents flattens stored crossings into entry/exit observations for the
// visit reconciler.
func (r *ReportRepository) ZoneEvents(ctx context.Context, from, to time.Time) ([]visits.ZoneEvent, error) {
	stored, err := r.List(ctx, reports.ListFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	var result []visits.ZoneEvent
	for _, row := range stored {
		if row.ZoneLabel == "" {
			continue
		}
		if row.Entry != nil {
			result = append(result, visits.ZoneEvent{
				Unit: row.UnitLabel,
				Zone: row.ZoneLabel,
				Kind: events.KindEntry,
				At:   row.Entry.At,
			})
		}
		if row.Exit != nil {
			result = append(result, visits.ZoneEvent{
				Unit: row.UnitLabel,
				Zone: row.ZoneLabel,
				Kind: events.KindExit,
				At:   row.Exit.At,
			})
		}
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(scanner rowScanner) (reports.Row, error) {
	var row reports.Row
	var entryText, exitText sql.NullString
	var entryAt, exitAt sql.NullTime
	var entryLon, entryLat, exitLon, exitLat sql.NullFloat64

	err := scanner.Scan(
		&row.Kind,
		&row.SourceUnitID,
		&row.UnitLabel,
		&row.ZoneLabel,
		&entryText, &entryAt, &entryLon, &entryLat,
		&exitText, &exitAt, &exitLon, &exitLat,
		&row.IntervalStart,
		&row.IntervalEnd,
		&row.DurationLabel,
	)
	if err != nil {
		return reports.Row{}, err
	}

	row.IntervalStart = row.IntervalStart.UTC()
	row.IntervalEnd = row.IntervalEnd.UTC()
	row.Entry = toSample(entryText, entryAt, entryLon, entryLat)
	row.Exit = toSample(exitText, exitAt, exitLon, exitLat)
	return row, nil
}

func toSample(text sql.NullString, at sql.NullTime, lon, lat sql.NullFloat64) *reports.Sample {
	if !at.Valid {
		return nil
	}
	return &reports.Sample{
		LocalText: text.String,
		At:        at.Time.UTC(),
		Lon:       lon.Float64,
		Lat:       lat.Float64,
	}
}
