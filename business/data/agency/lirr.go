package agency

// lirrCatalog builds the Long Island Rail Road catalog. The LIRR feed uses
// numeric branch identifiers for its commuter rail lines and carries no bus
// or rapid transit service.
func lirrCatalog() *Catalog {
	return &Catalog{
		Name:     "lirr",
		Timezone: "America/New_York",
		RoutesCR: routeSet(
			"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13",
		),
		RoutesRapid: routeSet(),
		RoutesBus:   routeSet(),
		BusStops:    map[string]map[string]bool{},
	}
}
