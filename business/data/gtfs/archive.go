package gtfs

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/transitmatters/gobble/foundation/servicedate"
)

// Trip is one row of trips.txt.
type Trip struct {
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	TripID      string `csv:"trip_id"`
	Headsign    string `csv:"trip_headsign"`
	DirectionID int    `csv:"direction_id"`
}

// StopTime is one row of stop_times.txt with times normalized to seconds
// after midnight of the service date.
type StopTime struct {
	TripID           string          `csv:"trip_id"`
	ArrivalSeconds   ScheduleSeconds `csv:"arrival_time"`
	DepartureSeconds ScheduleSeconds `csv:"departure_time"`
	StopID           string          `csv:"stop_id"`
	StopSequence     int             `csv:"stop_sequence"`
}

// stopRow is the subset of stops.txt the archive keeps.
type stopRow struct {
	StopID   string `csv:"stop_id"`
	StopName string `csv:"stop_name"`
}

// ScheduleArchive is an immutable snapshot of one GTFS feed scoped to a
// single service date: only trips whose service id is active on that date
// survive loading, and optionally only trips on an allow-listed route.
// Per-route join indexes are built lazily on first use.
type ScheduleArchive struct {
	ServiceDate servicedate.Date

	tripsByRoute     map[string][]Trip
	stopTimesByRoute map[string][]StopTime
	tripDirection    map[string]int
	stopNames        map[string]string

	mu      sync.Mutex
	indexes map[string]*routeIndex
}

// LoadArchive builds a ScheduleArchive for date from the extracted feed in
// dir. A nil routeFilter keeps every route.
func LoadArchive(dir string, date servicedate.Date, routeFilter map[string]bool) (*ScheduleArchive, error) {
	services, err := ActiveServices(dir, date)
	if err != nil {
		return nil, err
	}

	var trips []Trip
	if err := readCSVFile(filepath.Join(dir, "trips.txt"), &trips); err != nil {
		return nil, fmt.Errorf("loading trips: %w", err)
	}

	archive := &ScheduleArchive{
		ServiceDate:      date,
		tripsByRoute:     make(map[string][]Trip),
		stopTimesByRoute: make(map[string][]StopTime),
		tripDirection:    make(map[string]int),
		stopNames:        make(map[string]string),
		indexes:          make(map[string]*routeIndex),
	}

	tripRoute := make(map[string]string)
	for _, trip := range trips {
		if !services[trip.ServiceID] {
			continue
		}
		if routeFilter != nil && !routeFilter[trip.RouteID] {
			continue
		}
		archive.tripsByRoute[trip.RouteID] = append(archive.tripsByRoute[trip.RouteID], trip)
		archive.tripDirection[trip.TripID] = trip.DirectionID
		tripRoute[trip.TripID] = trip.RouteID
	}

	var stopTimes []StopTime
	if err := readCSVFile(filepath.Join(dir, "stop_times.txt"), &stopTimes); err != nil {
		return nil, fmt.Errorf("loading stop times: %w", err)
	}
	for _, stopTime := range stopTimes {
		routeID, kept := tripRoute[stopTime.TripID]
		if !kept || stopTime.ArrivalSeconds < 0 {
			continue
		}
		archive.stopTimesByRoute[routeID] = append(archive.stopTimesByRoute[routeID], stopTime)
	}

	var stops []stopRow
	if err := readCSVFile(filepath.Join(dir, "stops.txt"), &stops); err != nil {
		return nil, fmt.Errorf("loading stops: %w", err)
	}
	for _, stop := range stops {
		archive.stopNames[stop.StopID] = stop.StopName
	}

	return archive, nil
}

// TripsOnRoute returns the active trips for routeID.
func (a *ScheduleArchive) TripsOnRoute(routeID string) []Trip {
	return a.tripsByRoute[routeID]
}

// StopTimesOnRoute returns the stop times for routeID's active trips.
func (a *ScheduleArchive) StopTimesOnRoute(routeID string) []StopTime {
	return a.stopTimesByRoute[routeID]
}

// StopName returns the display name of stopID, or the id itself when the
// feed does not name the stop.
func (a *ScheduleArchive) StopName(stopID string) string {
	if name, present := a.stopNames[stopID]; present && name != "" {
		return name
	}
	return stopID
}

// RouteCount reports the number of routes with active trips.
func (a *ScheduleArchive) RouteCount() int {
	return len(a.tripsByRoute)
}

// indexFor returns the lazily built join index for routeID.
func (a *ScheduleArchive) indexFor(routeID string) *routeIndex {
	a.mu.Lock()
	defer a.mu.Unlock()
	index, present := a.indexes[routeID]
	if !present {
		index = buildRouteIndex(a.stopTimesByRoute[routeID], a.tripDirection)
		a.indexes[routeID] = index
	}
	return index
}
