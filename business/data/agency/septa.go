package agency

// septaRegionalRailCatalog builds the SEPTA Regional Rail catalog. SEPTA
// publishes a separate GTFS pair for regional rail, so the catalog carries
// commuter rail lines only.
func septaRegionalRailCatalog() *Catalog {
	return &Catalog{
		Name:     "septa_regionalrail",
		Timezone: "America/New_York",
		RoutesCR: routeSet(
			"AIR",
			"WAR",
			"WIL",
			"MED",
			"WTR",
			"LAN",
			"PAO",
			"CYN",
			"NOR",
			"Trenton",
			"CHE",
			"CHW",
			"FOX",
		),
		RoutesRapid: routeSet(),
		RoutesBus:   routeSet(),
		BusStops:    map[string]map[string]bool{},
	}
}
