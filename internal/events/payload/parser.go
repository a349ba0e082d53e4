package payload

import (
	"errors"
	"regexp"
	"strings"

	events "geofleet-cloud/internal/events/domain"
)

// ErrNoTemplate reports a payload that matches none of the known event
// templates. Callers store the raw payload untransformed; this is a valid
// terminal state, not a retryable error.
var ErrNoTemplate = errors.New("payload: no known template")

// Grouper resolves a zone name to its logical group ("" when unmapped).
type Grouper interface {
	Resolve(zone string) string
}

// The platform notifies in three fixed Spanish templates:
//
//	"<UNIT> entró en <ZONE> el <TIME> con una velocidad de <SPEED> cerca de '<LOCATION>'. [<EXTRA>]"
//	"<UNIT> salió de <ZONE> el <TIME> con una velocidad de <SPEED> cerca de '<LOCATION>'. [<EXTRA>]"
//	"ATENCION! <UNIT> realizó una parada no autorizada el <TIME> cerca de '<LOCATION>'."
//
// The combined entry/exit pattern is tried first; the verb decides the kind.
// The trailing period is optional and anything after it is captured as one
// free-text group.
var (
	fullPattern = regexp.MustCompile(`^\s*(.+?)\s+(entró en|salió de)\s+(.+?)\s+el\s+(.+?)\s+con una velocidad de\s+(.+?)\s+cerca de\s+'(.+?)'(?:\s*\.\s*(.*))?\s*$`)
	stopPattern = regexp.MustCompile(`^\s*ATENCION!\s+(.+?)\s+realizó una parada no autorizada el\s+(.+?)\s+cerca de\s+'(.+?)'\s*\.?\s*$`)
)

// Parser extracts structured events from notification text.
type Parser struct {
	times  *Normalizer
	groups Grouper
}

// NewParser constructs a Parser. A nil grouper leaves groups unresolved.
func NewParser(times *Normalizer, groups Grouper) *Parser {
	if times == nil {
		times = NewNormalizer(nil)
	}
	return &Parser{times: times, groups: groups}
}

// Parse turns one notification string into a RawEvent. A malformed timestamp
// leaves UTCTime nil but still succeeds; only an unrecognized template
// returns ErrNoTemplate.
func (p *Parser) Parse(raw string) (events.RawEvent, error) {
	if m := fullPattern.FindStringSubmatch(raw); m != nil {
		kind := events.KindEntry
		if m[2] == "salió de" {
			kind = events.KindExit
		}
		zone := strings.TrimSpace(m[3])
		localTime := strings.TrimSpace(m[4])
		return events.RawEvent{
			Kind:       kind,
			Unit:       strings.TrimSpace(m[1]),
			Zone:       zone,
			Group:      p.resolveGroup(zone, strings.TrimSpace(m[7])),
			LocalTime:  localTime,
			UTCTime:    p.times.ToUTC(localTime),
			Speed:      strings.TrimSpace(m[5]),
			Location:   strings.TrimSpace(m[6]),
			RawPayload: raw,
		}, nil
	}

	if m := stopPattern.FindStringSubmatch(raw); m != nil {
		localTime := strings.TrimSpace(m[2])
		return events.RawEvent{
			Kind:       events.KindUnauthorizedStop,
			Unit:       strings.TrimSpace(m[1]),
			LocalTime:  localTime,
			UTCTime:    p.times.ToUTC(localTime),
			Location:   strings.TrimSpace(m[3]),
			RawPayload: raw,
		}, nil
	}

	return events.RawEvent{RawPayload: raw}, ErrNoTemplate
}

// resolveGroup prefers the configured zone->group table and falls back to the
// free-text group that some notifications append after the closing period.
func (p *Parser) resolveGroup(zone, trailing string) string {
	if p.groups != nil {
		if group := p.groups.Resolve(zone); group != "" {
			return group
		}
	}
	return trailing
}
