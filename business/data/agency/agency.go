// Package agency provides per-agency route catalogs: which routes belong to
// which transit mode, and which bus stops are monitored for events.
package agency

import (
	"fmt"
	"sort"
	"time"
)

// Mode identifies the transit mode a route belongs to. Output shards and
// worker assignment are partitioned by mode.
type Mode string

const (
	ModeBus   Mode = "bus"
	ModeCR    Mode = "cr"
	ModeRapid Mode = "rapid"
)

// Modes lists every supported mode, in worker start order.
var Modes = []Mode{ModeRapid, ModeCR, ModeBus}

// Catalog holds one agency's route identifiers, partitioned by mode, and the
// bus stops monitored per bus route. A catalog is loaded once at startup and
// never mutated afterwards.
type Catalog struct {
	Name     string
	Timezone string

	// VehiclesStreamURL is the agency's server-sent-events vehicle feed.
	// Empty when the agency only publishes GTFS-RT.
	VehiclesStreamURL string

	RoutesBus   map[string]bool
	RoutesCR    map[string]bool
	RoutesRapid map[string]bool

	// BusStops maps a bus route to the set of stop ids recorded for it.
	// Bus routes without an entry produce no events.
	BusStops map[string]map[string]bool
}

// catalogs holds every supported agency by config name.
var catalogs = map[string]func() *Catalog{
	"lirr":               lirrCatalog,
	"mbta":               mbtaCatalog,
	"septa_regionalrail": septaRegionalRailCatalog,
	"wmata_rail":         wmataRailCatalog,
}

// Load returns the catalog for the named agency. Unknown agency names are a
// configuration error, detected at startup rather than at runtime.
func Load(name string) (*Catalog, error) {
	build, present := catalogs[name]
	if !present {
		return nil, fmt.Errorf("unknown agency %q, supported agencies: %v", name, SupportedAgencies())
	}
	catalog := build()
	if err := catalog.validate(); err != nil {
		return nil, fmt.Errorf("agency %q catalog: %w", name, err)
	}
	return catalog, nil
}

// SupportedAgencies returns the sorted list of agency config names.
func SupportedAgencies() []string {
	names := make([]string, 0, len(catalogs))
	for name := range catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Location resolves the catalog's time zone.
func (c *Catalog) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Classify returns the mode routeID belongs to, or false if the route is not
// part of this catalog.
func (c *Catalog) Classify(routeID string) (Mode, bool) {
	switch {
	case c.RoutesCR[routeID]:
		return ModeCR, true
	case c.RoutesRapid[routeID]:
		return ModeRapid, true
	case c.RoutesBus[routeID]:
		return ModeBus, true
	}
	return "", false
}

// Routes returns the sorted route ids for a mode.
func (c *Catalog) Routes(mode Mode) []string {
	var set map[string]bool
	switch mode {
	case ModeBus:
		set = c.RoutesBus
	case ModeCR:
		set = c.RoutesCR
	case ModeRapid:
		set = c.RoutesRapid
	}
	routes := make([]string, 0, len(set))
	for routeID := range set {
		routes = append(routes, routeID)
	}
	sort.Strings(routes)
	return routes
}

// AllRoutes returns every route id in the catalog, sorted.
func (c *Catalog) AllRoutes() []string {
	routes := make([]string, 0, len(c.RoutesBus)+len(c.RoutesCR)+len(c.RoutesRapid))
	for _, mode := range Modes {
		routes = append(routes, c.Routes(mode)...)
	}
	sort.Strings(routes)
	return routes
}

// RouteSet returns AllRoutes as a set for feed filtering.
func (c *Catalog) RouteSet() map[string]bool {
	set := make(map[string]bool)
	for _, routeID := range c.AllRoutes() {
		set[routeID] = true
	}
	return set
}

// RecordsStop reports whether an event at stopID on routeID should be kept.
// Every commuter rail and rapid transit stop is recorded, bus stops only when
// present in the route's allow-list.
func (c *Catalog) RecordsStop(routeID string, stopID string) bool {
	if c.RoutesCR[routeID] || c.RoutesRapid[routeID] {
		return true
	}
	return c.BusStops[routeID][stopID]
}

// validate checks that the three mode sets are disjoint and that every
// bus stop allow-list belongs to a declared bus route.
func (c *Catalog) validate() error {
	for routeID := range c.RoutesBus {
		if c.RoutesCR[routeID] || c.RoutesRapid[routeID] {
			return fmt.Errorf("route %q appears in more than one mode", routeID)
		}
	}
	for routeID := range c.RoutesCR {
		if c.RoutesRapid[routeID] {
			return fmt.Errorf("route %q appears in more than one mode", routeID)
		}
	}
	for routeID := range c.BusStops {
		if !c.RoutesBus[routeID] {
			return fmt.Errorf("bus stops declared for %q which is not a bus route", routeID)
		}
	}
	return nil
}

// routeSet builds a set from a list of route ids.
func routeSet(routeIDs ...string) map[string]bool {
	set := make(map[string]bool, len(routeIDs))
	for _, routeID := range routeIDs {
		set[routeID] = true
	}
	return set
}

// stopSet builds a set from a list of stop ids.
func stopSet(stopIDs ...string) map[string]bool {
	return routeSet(stopIDs...)
}
