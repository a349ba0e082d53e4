package visits

import (
	"math"
	"sort"
	"time"

	events "geofleet-cloud/internal/events/domain"
)

// ZoneEvent is a single entry/exit observation for one unit in one zone.
type ZoneEvent struct {
	Unit string
	Zone string
	Kind events.EventKind
	At   time.Time
}

// Visit is a reconstructed dwell interval for one unit in one zone. Either
// endpoint may be missing, never both; DurationMinutes is set only when both
// endpoints are present.
type Visit struct {
	Unit            string
	Zone            string
	Group           string
	Start           *time.Time
	End             *time.Time
	DurationMinutes *float64
}

// Reconcile pairs entry/exit events of a single (unit, zone) partition into
// visits. The input must be sorted ascending by time with entries ordered
// before exits at equal instants; Build does both.
//
// A later entry before any exit supersedes the pending one, which is emitted
// as an open visit rather than dropped (confirmed product behavior, kept for
// parity with the reporting the operator already relies on). Reconcile is a
// pure function of its input, so re-running it over the same history yields
// the same visits.
func Reconcile(zoneEvents []ZoneEvent) []Visit {
	var result []Visit
	var pendingEntry *time.Time

	for _, event := range zoneEvents {
		at := event.At
		switch event.Kind {
		case events.KindEntry:
			if pendingEntry != nil {
				result = append(result, Visit{Unit: event.Unit, Zone: event.Zone, Start: pendingEntry})
			}
			pendingEntry = &at
		case events.KindExit:
			visit := Visit{Unit: event.Unit, Zone: event.Zone, End: &at}
			if pendingEntry != nil {
				visit.Start = pendingEntry
				visit.DurationMinutes = durationMinutes(*pendingEntry, at)
				pendingEntry = nil
			}
			result = append(result, visit)
		}
	}

	if pendingEntry != nil && len(zoneEvents) > 0 {
		last := zoneEvents[len(zoneEvents)-1]
		result = append(result, Visit{Unit: last.Unit, Zone: last.Zone, Start: pendingEntry})
	}
	return result
}

// Build partitions an arbitrary event stream by (unit, zone), orders each
// partition, and reconciles it. Partitions never interact.
func Build(zoneEvents []ZoneEvent) []Visit {
	type partitionKey struct {
		unit string
		zone string
	}

	partitions := make(map[partitionKey][]ZoneEvent)
	var order []partitionKey
	for _, event := range zoneEvents {
		key := partitionKey{unit: event.Unit, zone: event.Zone}
		if _, seen := partitions[key]; !seen {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], event)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].unit != order[j].unit {
			return order[i].unit < order[j].unit
		}
		return order[i].zone < order[j].zone
	})

	var result []Visit
	for _, key := range order {
		partition := partitions[key]
		sortZoneEvents(partition)
		result = append(result, Reconcile(partition)...)
	}
	return result
}

// sortZoneEvents orders ascending by time, entries before exits at the same
// instant so a zero-length visit pairs instead of producing two unmatched
// halves.
func sortZoneEvents(zoneEvents []ZoneEvent) {
	sort.SliceStable(zoneEvents, func(i, j int) bool {
		if !zoneEvents[i].At.Equal(zoneEvents[j].At) {
			return zoneEvents[i].At.Before(zoneEvents[j].At)
		}
		return zoneEvents[i].Kind == events.KindEntry && zoneEvents[j].Kind == events.KindExit
	})
}

func durationMinutes(start, end time.Time) *float64 {
	minutes := math.Round(end.Sub(start).Minutes()*100) / 100
	return &minutes
}
