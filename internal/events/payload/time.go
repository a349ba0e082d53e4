package payload

import (
	"regexp"
	"time"
)

// sourceLayout is the timestamp format emitted by the tracking platform.
const sourceLayout = "02.01.2006 15:04:05"

// time.Parse accepts unpadded components, so the shape is checked first to
// keep parsing format-exact.
var sourceShape = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4} \d{2}:\d{2}:\d{2}$`)

// Normalizer converts local timestamps from the operating region into UTC
// instants.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer constructs a Normalizer for the given source zone. A nil
// location falls back to DefaultLocation.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = DefaultLocation()
	}
	return &Normalizer{loc: loc}
}

// DefaultLocation returns the operating region's civil time zone. When the
// zone database is unavailable it falls back to the region's fixed offset
// (the zone observes no DST).
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation("America/Guayaquil")
	if err != nil {
		return time.FixedZone("-05", -5*60*60)
	}
	return loc
}

// ToUTC parses a "dd.mm.yyyy HH:mm:ss" local timestamp and returns the
// corresponding UTC instant. Any deviation from the format returns nil.
func (n *Normalizer) ToUTC(text string) *time.Time {
	if n == nil || !sourceShape.MatchString(text) {
		return nil
	}
	parsed, err := time.ParseInLocation(sourceLayout, text, n.loc)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}
