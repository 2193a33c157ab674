package agency

// mbtaCatalog builds the Massachusetts Bay Transportation Authority catalog.
// Rapid transit and commuter rail are recorded at every stop. For buses the
// feed is too chatty to keep everything, so only the listed key stops on the
// highest-frequency corridors are monitored.
func mbtaCatalog() *Catalog {
	return &Catalog{
		Name:              "mbta",
		Timezone:          "America/New_York",
		VehiclesStreamURL: "https://api-v3.mbta.com/vehicles",
		RoutesRapid: routeSet(
			"Red",
			"Orange",
			"Blue",
			"Green-B",
			"Green-C",
			"Green-D",
			"Green-E",
			"Mattapan",
		),
		RoutesCR: routeSet(
			"CR-Fairmount",
			"CR-Fitchburg",
			"CR-Worcester",
			"CR-Franklin",
			"CR-Greenbush",
			"CR-Haverhill",
			"CR-Kingston",
			"CR-Lowell",
			"CR-Middleborough",
			"CR-Needham",
			"CR-Newburyport",
			"CR-Providence",
			"CR-Foxboro",
		),
		RoutesBus: routeSet(
			"1", "15", "22", "23", "28", "32", "39", "57", "66", "71", "73", "77",
			"111", "114", "116", "117",
		),
		BusStops: map[string]map[string]bool{
			"1":   stopSet("64", "110", "72", "75", "79", "187", "59", "62", "2168", "93", "97", "101", "102"),
			"15":  stopSet("17861", "323", "1468", "11257", "64000"),
			"22":  stopSet("383", "386", "406", "64000", "11257"),
			"23":  stopSet("11531", "383", "406", "64000"),
			"28":  stopSet("18511", "383", "406", "64000", "1721"),
			"32":  stopSet("6505", "42820", "10642", "875"),
			"39":  stopSet("6602", "10642", "1085", "21148", "22549"),
			"57":  stopSet("899", "903", "912", "918", "926", "964"),
			"66":  stopSet("64000", "1111", "1115", "1123", "1294", "22549"),
			"71":  stopSet("2076", "2056", "20761", "2020"),
			"73":  stopSet("2076", "2116", "20761", "2020"),
			"77":  stopSet("2310", "23151", "2260", "20761"),
			"111": stopSet("8309", "8310", "5615", "5617", "2829"),
			"114": stopSet("5740", "5743", "4726", "4727"),
			"116": stopSet("5615", "5740", "8310", "4731"),
			"117": stopSet("5615", "5740", "8310", "4731"),
		},
	}
}
