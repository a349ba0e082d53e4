package payload

import (
	"errors"
	"testing"
	"time"

	events "geofleet-cloud/internal/events/domain"
)

type staticGrouper map[string]string

func (g staticGrouper) Resolve(zone string) string { return g[zone] }

func fixedOffsetParser(groups Grouper) *Parser {
	return NewParser(NewNormalizer(time.FixedZone("-05", -5*60*60)), groups)
}

func TestParseEntry(t *testing.T) {
	parser := fixedOffsetParser(staticGrouper{"PROMARISCO-DURAN": "HIELERAS"})

	event, err := parser.Parse("PM020 entró en PROMARISCO-DURAN el 02.12.2025 08:15:07 con una velocidad de 4 km/h cerca de 'Vía Durán - Vírgen De Fátima'.")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Kind != events.KindEntry {
		t.Fatalf("expected ENTRY, got %s", event.Kind)
	}
	if event.Unit != "PM020" {
		t.Fatalf("unexpected unit %q", event.Unit)
	}
	if event.Zone != "PROMARISCO-DURAN" {
		t.Fatalf("unexpected zone %q", event.Zone)
	}
	if event.Group != "HIELERAS" {
		t.Fatalf("unexpected group %q", event.Group)
	}
	if event.LocalTime != "02.12.2025 08:15:07" {
		t.Fatalf("unexpected local time %q", event.LocalTime)
	}
	if event.Speed != "4 km/h" {
		t.Fatalf("unexpected speed %q", event.Speed)
	}
	if event.Location != "Vía Durán - Vírgen De Fátima" {
		t.Fatalf("unexpected location %q", event.Location)
	}
	if event.UTCTime == nil {
		t.Fatal("expected UTC time")
	}
	want := time.Date(2025, time.December, 2, 13, 15, 7, 0, time.UTC)
	if !event.UTCTime.Equal(want) {
		t.Fatalf("expected %s, got %s", want, event.UTCTime)
	}
}

func TestParseExit(t *testing.T) {
	parser := fixedOffsetParser(nil)

	event, err := parser.Parse("PM001 salió de ISLA-ESCALANTE el 02.12.2025 14:30:15 con una velocidad de 12 km/h cerca de 'Km 26 Vía Durán Tambo'.")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Kind != events.KindExit {
		t.Fatalf("expected EXIT, got %s", event.Kind)
	}
	if event.Zone != "ISLA-ESCALANTE" {
		t.Fatalf("unexpected zone %q", event.Zone)
	}
}

func TestParseUnauthorizedStop(t *testing.T) {
	parser := fixedOffsetParser(nil)

	event, err := parser.Parse("ATENCION! PM007 realizó una parada no autorizada el 03.12.2025 22:10:00 cerca de 'Recinto El Deseo'.")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Kind != events.KindUnauthorizedStop {
		t.Fatalf("expected UNAUTHORIZED_STOP, got %s", event.Kind)
	}
	if event.Unit != "PM007" {
		t.Fatalf("unexpected unit %q", event.Unit)
	}
	if event.Zone != "" || event.Speed != "" {
		t.Fatalf("stop events carry no zone/speed, got %q/%q", event.Zone, event.Speed)
	}
	if event.Location != "Recinto El Deseo" {
		t.Fatalf("unexpected location %q", event.Location)
	}
}

func TestParseMissingTrailingPeriod(t *testing.T) {
	parser := fixedOffsetParser(nil)

	event, err := parser.Parse("PM003 entró en FERASA el 05.12.2025 06:00:00 con una velocidad de 0 km/h cerca de 'Camino vecinal'")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Location != "Camino vecinal" {
		t.Fatalf("unexpected location %q", event.Location)
	}
}

func TestParseQuotesInsideLocation(t *testing.T) {
	parser := fixedOffsetParser(nil)

	event, err := parser.Parse("PM004 salió de JOPISA el 05.12.2025 07:45:10 con una velocidad de 8 km/h cerca de 'Hacienda 'El Recreo' km 5'.")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Location != "Hacienda 'El Recreo' km 5" {
		t.Fatalf("expected verbatim inner quotes, got %q", event.Location)
	}
}

func TestParseTrailingSentencesAsGroup(t *testing.T) {
	parser := fixedOffsetParser(nil)

	event, err := parser.Parse("PM005 entró en ZONA-DESCONOCIDA el 05.12.2025 09:00:00 con una velocidad de 20 km/h cerca de 'Vía a la Costa'. CAMARONERAS. Tramo norte.")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Group != "CAMARONERAS. Tramo norte." {
		t.Fatalf("expected trailing text as group, got %q", event.Group)
	}
}

func TestParseGroupLookupBeatsTrailingText(t *testing.T) {
	parser := fixedOffsetParser(staticGrouper{"FERASA": "CAMARONERAS"})

	event, err := parser.Parse("PM006 entró en FERASA el 05.12.2025 10:00:00 con una velocidad de 5 km/h cerca de 'Camino vecinal'. OTRA-COSA")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Group != "CAMARONERAS" {
		t.Fatalf("expected mapped group, got %q", event.Group)
	}
}

func TestParseMalformedTimeStillSucceeds(t *testing.T) {
	parser := fixedOffsetParser(nil)

	event, err := parser.Parse("PM008 entró en LUKMAR el 5.12.25 08:00 con una velocidad de 3 km/h cerca de 'Muelle'.")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.UTCTime != nil {
		t.Fatalf("expected nil UTC time for malformed timestamp, got %s", event.UTCTime)
	}
	if event.Unit != "PM008" || event.Zone != "LUKMAR" {
		t.Fatalf("other fields should still be populated, got %q/%q", event.Unit, event.Zone)
	}
	if event.LocalTime != "5.12.25 08:00" {
		t.Fatalf("unexpected local time %q", event.LocalTime)
	}
}

func TestParseNoTemplate(t *testing.T) {
	parser := fixedOffsetParser(nil)

	event, err := parser.Parse("mensaje sin formato conocido")
	if !errors.Is(err, ErrNoTemplate) {
		t.Fatalf("expected ErrNoTemplate, got %v", err)
	}
	if event.Parsed() {
		t.Fatal("unparsed event must not carry a kind")
	}
	if event.RawPayload != "mensaje sin formato conocido" {
		t.Fatalf("raw payload must be preserved, got %q", event.RawPayload)
	}
}
