package agency

// wmataRailCatalog builds the WMATA Metrorail catalog: the six rail lines
// plus the rail-replacement shuttle, which the feed reports as a bus route
// serving a handful of platform stops.
func wmataRailCatalog() *Catalog {
	return &Catalog{
		Name:     "wmata_rail",
		Timezone: "America/New_York",
		RoutesRapid: routeSet(
			"BLUE",
			"GREEN",
			"ORANGE",
			"RED",
			"SILVER",
			"YELLOW",
		),
		RoutesCR:  routeSet(),
		RoutesBus: routeSet("SHUTTLE"),
		BusStops: map[string]map[string]bool{
			"SHUTTLE": stopSet("PF_E08_1", "PF_E09_C", "PF_E10_C"),
		},
	}
}
