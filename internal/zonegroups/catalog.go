package zonegroups

// Built-in fence catalog. Groups are listed in priority order: when a fence
// name appears under more than one group, the first listing wins ("24" belongs
// to the Marfrisco pool set, not the general one).
var builtinCatalog = []struct {
	group string
	zones []string
}{
	{
		group: "CAMARONERAS",
		zones: []string{
			"ACUICOLA-CARRIZAL",
			"ALGARROBOCORP",
			"BELLITEC",
			"CAMAJOSE",
			"COPACKING-COMUMAP",
			"COPACKING-PRORIOSA",
			"CORP-COSTANERA",
			"CORPLANEC",
			"CRISTALMAR",
			"DARSACOM",
			"ENGUNGAMAR",
			"FERASA",
			"FIMASA 3",
			"FINCAS-MARINAS",
			"GREENTRAILCORP",
			"HARAUTE-S.A.",
			"IPYCA",
			"ISLA-BELLAVISTA",
			"ISLA-ESCALANTE",
			"ISLA-QUIÑONEZ",
			"ISLA-SANTA-CECILIA",
			"JESUS-DEL-GRAN-PODER",
			"JOPISA",
			"LIMBOMAR",
			"LIMBOMAR-CHURUTE",
			"LINGLE-S.A",
			"LIVELIBERTY",
			"LUKMAR",
			"MARFRISCO",
			"PANTRUSKO-2",
			"PANTRUSKO-S.A.",
			"PISCICOLA-MALECON",
			"PRODUMAR",
			"PRODUMAR-DURAN",
			"RECORCHOLIS-1",
			"RECORCHOLIS-2",
			"ROLESA-1",
			"ROLESA-2",
		},
	},
	{
		group: "HIELERAS",
		zones: []string{
			"HIELERA-ECUAHIELO",
			"HIELERA-FLAKES-ICE",
			"HIELERA-FRIGOLOGISTICA",
			"HIELERA-FRIO-PACIFICO",
			"HIELERA-LOG-ECUATORIANA",
			"HIELERA-OCEANICE",
			"HIELERA-REFRISTORE",
		},
	},
	{
		group: "PISCINAS_MARFRISCO",
		zones: []string{"24"},
	},
	{
		group: "PISCINAS",
		zones: []string{
			"24", "29",
			"M2", "M3", "M4", "M5", "M6", "M7", "M8",
			"M17", "M19", "M26", "M27", "M33", "M35",
			"M39", "M40", "M41", "M42",
		},
	},
	{
		group: "PROHIBICIONES",
		zones: []string{
			"INGRESO-AL-CENTRO",
			"PEAJE-YAGUACHI",
			"PEDRO-J-MONTERO",
			"VIRGEN-DE-FATIMA-P2",
		},
	},
}

// BuiltinMappings flattens the catalog into a zone->group table. Keys are
// upper-cased fence names.
func BuiltinMappings() map[string]string {
	result := make(map[string]string)
	for _, entry := range builtinCatalog {
		for _, zone := range entry.zones {
			if _, taken := result[zone]; !taken {
				result[zone] = entry.group
			}
		}
	}
	return result
}
