package application

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	visits "geofleet-cloud/internal/visits/domain"
)

// EventSource yields entry/exit observations for a time window. Both the
// webhook event store and the report row store implement it; their events are
// merged before reconciliation.
type EventSource interface {
	ZoneEvents(ctx context.Context, from, to time.Time) ([]visits.ZoneEvent, error)
}

// Grouper resolves a zone name to its logical group.
type Grouper interface {
	Resolve(zone string) string
}

// VisitService reconstructs visits from the stored event history.
type VisitService struct {
	logger  *log.Logger
	groups  Grouper
	sources []EventSource
}

// NewVisitService constructs a service over one or more event sources.
func NewVisitService(logger *log.Logger, groups Grouper, sources ...EventSource) (*VisitService, error) {
	if len(sources) == 0 {
		return nil, errors.New("visit service: no event sources")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &VisitService{logger: logger, groups: groups, sources: sources}, nil
}

// QueryFilter narrows Query results. Zero values mean no constraint.
type QueryFilter struct {
	Unit  string
	Zone  string
	Group string
	From  time.Time
	To    time.Time
	Limit int
}

// Query rebuilds visits over the filter window and returns them newest
// first. Reconciliation is deterministic, so repeated queries over the same
// history yield the same visits.
func (s *VisitService) Query(ctx context.Context, filter QueryFilter) ([]visits.Visit, error) {
	from, to := filter.From, filter.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, -2, 0)
	}

	var zoneEvents []visits.ZoneEvent
	for _, source := range s.sources {
		batch, err := source.ZoneEvents(ctx, from, to)
		if err != nil {
			return nil, err
		}
		zoneEvents = append(zoneEvents, batch...)
	}

	result := visits.Build(zoneEvents)
	for i := range result {
		if s.groups != nil {
			result[i].Group = s.groups.Resolve(result[i].Zone)
		}
	}
	result = applyFilter(result, filter)
	sortNewestFirst(result)

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func applyFilter(in []visits.Visit, filter QueryFilter) []visits.Visit {
	if filter.Unit == "" && filter.Zone == "" && filter.Group == "" {
		return in
	}
	var result []visits.Visit
	for _, visit := range in {
		if filter.Unit != "" && visit.Unit != filter.Unit {
			continue
		}
		if filter.Zone != "" && visit.Zone != filter.Zone {
			continue
		}
		if filter.Group != "" && visit.Group != filter.Group {
			continue
		}
		result = append(result, visit)
	}
	return result
}

// sortNewestFirst orders by start time descending; open visits with no start
// sort by their end time.
func sortNewestFirst(in []visits.Visit) {
	at := func(v visits.Visit) time.Time {
		if v.Start != nil {
			return *v.Start
		}
		if v.End != nil {
			return *v.End
		}
		return time.Time{}
	}
	sort.SliceStable(in, func(i, j int) bool {
		return at(in[i]).After(at(in[j]))
	})
}
