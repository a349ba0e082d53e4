package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const defaultZoneGroupsTable = "zone_groups"

// ZoneGroupRepository is a Postgres implementation of the zone->group
// override table.
type ZoneGroupRepository struct {
	db    *sql.DB
	table string
}

// NewZoneGroupRepository constructs a repository.
func NewZoneGroupRepository(db *sql.DB, opts ...ZoneGroupOption) *ZoneGroupRepository {
	repo := &ZoneGroupRepository{db: db, table: defaultZoneGroupsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ZoneGroupOption configures the repository.
type ZoneGroupOption func(*ZoneGroupRepository)

// WithZoneGroupsTable overrides the table name.
func WithZoneGroupsTable(table string) ZoneGroupOption {
	return func(repo *ZoneGroupRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// ListMappings loads every persisted zone->group override.
func (r *ZoneGroupRepository) ListMappings(ctx context.Context) (map[string]string, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("zone group repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT zone, group_name
FROM %s
ORDER BY zone ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var zone, group string
		if err := rows.Scan(&zone, &group); err != nil {
			return nil, err
		}
		result[zone] = group
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts one override.
func (r *ZoneGroupRepository) Save(ctx context.Context, zone, group string) error {
	if r == nil || r.db == nil {
		return errors.New("zone group repo: nil db")
	}
	if zone == "" || group == "" {
		return errors.New("zone group repo: empty zone or group")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (zone, group_name)
VALUES ($1, $2)
ON CONFLICT (zone)
DO UPDATE SET
	group_name = EXCLUDED.group_name,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(ctx, query, zone, group)
	return err
}
