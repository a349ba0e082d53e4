package reports

import (
	"fmt"
	"time"
)

// Sample is one GPS point of a zone crossing, as reported by the platform.
type Sample struct {
	LocalText string
	At        time.Time
	Lon       float64
	Lat       float64
}

// Row is one unit/zone crossing fetched from the external report. Repeated
// syncs over overlapping windows re-fetch the same crossings; NaturalKey
// identifies the logical record across fetches.
type Row struct {
	Kind          string
	SourceUnitID  int64
	UnitLabel     string
	ZoneLabel     string
	Entry         *Sample
	Exit          *Sample
	IntervalStart time.Time
	IntervalEnd   time.Time
	DurationLabel string
}

// Key is the composite natural key of a Row.
type Key struct {
	SourceUnitID  int64
	UnitLabel     string
	IntervalStart time.Time
}

// NaturalKey returns the row's identity across syncs.
func (r Row) NaturalKey() Key {
	return Key{
		SourceUnitID:  r.SourceUnitID,
		UnitLabel:     r.UnitLabel,
		IntervalStart: r.IntervalStart.UTC(),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s@%s", k.SourceUnitID, k.UnitLabel, k.IntervalStart.Format(time.RFC3339))
}

// ListFilter narrows stored-row queries. Zero values mean no constraint.
type ListFilter struct {
	Kind   string
	Unit   string
	Zone   string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// UpsertAction is the store's decision for one incoming row.
type UpsertAction int

const (
	ActionInsert UpsertAction = iota
	ActionUpdate
	ActionUnchanged
)

// ClassifyUpsert decides what to do with an incoming row given the stored
// interval end for its natural key (nil when the key is unseen). An interval
// whose end moved is a crossing that was still open on the previous sync.
func ClassifyUpsert(existingEnd *time.Time, incoming Row) UpsertAction {
	if existingEnd == nil {
		return ActionInsert
	}
	if !existingEnd.UTC().Equal(incoming.IntervalEnd.UTC()) {
		return ActionUpdate
	}
	return ActionUnchanged
}

// UpsertResult summarizes one upsert batch.
type UpsertResult struct {
	Inserted  int
	Updated   int
	Unchanged int
}

// Add merges a per-row action into the summary.
func (r *UpsertResult) Add(action UpsertAction) {
	switch action {
	case ActionInsert:
		r.Inserted++
	case ActionUpdate:
		r.Updated++
	case ActionUnchanged:
		r.Unchanged++
	}
}
