package zonegroups

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

const (
	defaultRefreshTTL     = 10 * time.Minute
	defaultRefreshTimeout = 5 * time.Second
)

// MappingSource loads persisted zone->group overrides.
type MappingSource interface {
	ListMappings(ctx context.Context) (map[string]string, error)
}

// Resolver answers zone->group lookups from the built-in catalog merged with
// persisted overrides. Overrides are refreshed lazily once their age exceeds
// the ttl; a failed refresh keeps serving the previous table.
type Resolver struct {
	logger *log.Logger
	source MappingSource
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	mappings  map[string]string
	loadedAt  time.Time
	hasLoaded bool
}

// NewResolver constructs a resolver. A nil source serves the built-in catalog
// only.
func NewResolver(logger *log.Logger, source MappingSource, ttl time.Duration) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	if ttl <= 0 {
		ttl = defaultRefreshTTL
	}
	return &Resolver{
		logger:   logger,
		source:   source,
		ttl:      ttl,
		now:      time.Now,
		mappings: BuiltinMappings(),
	}
}

// Resolve returns the group a zone belongs to, or "" when unmapped. Lookup is
// case-insensitive on the zone name.
func (r *Resolver) Resolve(zone string) string {
	key := strings.ToUpper(strings.TrimSpace(zone))
	if key == "" {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked()
	return r.mappings[key]
}

// Refresh forces an immediate reload of the persisted overrides.
func (r *Resolver) Refresh(ctx context.Context) error {
	if r.source == nil {
		return nil
	}
	overrides, err := r.source.ListMappings(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply(overrides)
	return nil
}

func (r *Resolver) refreshLocked() {
	if r.source == nil {
		return
	}
	if r.hasLoaded && r.now().Sub(r.loadedAt) < r.ttl {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRefreshTimeout)
	defer cancel()
	overrides, err := r.source.ListMappings(ctx)
	if err != nil {
		r.logger.Printf("zone groups: refresh failed, keeping cached table: %v", err)
		// Back off for a full ttl so a broken source does not add latency
		// to every lookup.
		r.loadedAt = r.now()
		r.hasLoaded = true
		return
	}
	r.apply(overrides)
}

func (r *Resolver) apply(overrides map[string]string) {
	merged := BuiltinMappings()
	for zone, group := range overrides {
		key := strings.ToUpper(strings.TrimSpace(zone))
		if key == "" || group == "" {
			continue
		}
		merged[key] = group
	}
	r.mappings = merged
	r.loadedAt = r.now()
	r.hasLoaded = true
}
