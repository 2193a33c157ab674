package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/transitmatters/gobble/foundation/servicedate"
)

// maxTripAge is how long a trip entry may go without an update before it is
// considered abandoned.
const maxTripAge = 5 * time.Hour

// TripState is the last recorded position of one trip. The consist and
// occupancy fields carry the same pipe-delimited renderings the output rows
// use, so a restored state describes the vehicle as well as its position.
type TripState struct {
	StopID              string    `json:"stop_id"`
	StopSequence        int       `json:"stop_sequence"`
	EventType           string    `json:"event_type"`
	UpdatedAt           time.Time `json:"updated_at"`
	VehicleConsist      string    `json:"vehicle_consist"`
	OccupancyStatus     string    `json:"occupancy_status"`
	OccupancyPercentage string    `json:"occupancy_percentage"`
}

// routeStateFile is the on-disk snapshot layout.
type routeStateFile struct {
	ServiceDate string               `json:"service_date"`
	TripStates  map[string]TripState `json:"trip_states"`
}

// RouteTripsState tracks every live trip on one route and snapshots itself
// to disk after each write. One worker owns a route exclusively, so the
// struct carries no lock.
type RouteTripsState struct {
	log   *log.Logger
	path  string
	clock *servicedate.Clock

	serviceDate servicedate.Date
	trips       map[string]TripState
}

// newRouteTripsState restores a route's state from its snapshot file. A
// missing or unparseable file starts empty; the next write repairs it.
func newRouteTripsState(log *log.Logger, dir string, routeID string, clock *servicedate.Clock) *RouteTripsState {
	state := &RouteTripsState{
		log:   log,
		path:  filepath.Join(dir, routeID+".json"),
		clock: clock,
		trips: make(map[string]TripState),
	}

	contents, err := os.ReadFile(state.path)
	if err != nil {
		return state
	}
	var stored routeStateFile
	if err := json.Unmarshal(contents, &stored); err != nil {
		log.Printf("warning: ignoring corrupt trip state file %s: %v", state.path, err)
		return state
	}
	date, err := servicedate.Parse(stored.ServiceDate)
	if err != nil {
		log.Printf("warning: ignoring trip state file %s with bad service date: %v", state.path, err)
		return state
	}
	state.serviceDate = date
	if stored.TripStates != nil {
		state.trips = stored.TripStates
	}
	return state
}

// Trip returns the stored state for tripID. Reads run no eviction and stay
// O(1).
func (r *RouteTripsState) Trip(tripID string) (TripState, bool) {
	state, present := r.trips[tripID]
	return state, present
}

// Set runs the eviction rules, inserts the entry, and snapshots the full
// state to disk.
func (r *RouteTripsState) Set(tripID string, state TripState) {
	r.cleanupStale(state.UpdatedAt)
	r.purgeIfOvernight()
	r.trips[tripID] = state
	if err := r.persist(); err != nil {
		r.log.Printf("error persisting trip state to %s: %v", r.path, err)
	}
}

// cleanupStale drops entries older than maxTripAge.
func (r *RouteTripsState) cleanupStale(now time.Time) {
	cutoff := now.Add(-maxTripAge)
	for tripID, state := range r.trips {
		if state.UpdatedAt.Before(cutoff) {
			delete(r.trips, tripID)
		}
	}
}

// purgeIfOvernight empties the whole map when the service date has rolled
// over since the state was last written. The purge lives in the setter only;
// reads never mutate.
func (r *RouteTripsState) purgeIfOvernight() {
	current := r.clock.Current()
	if r.serviceDate.Before(current) {
		r.trips = make(map[string]TripState)
	}
	r.serviceDate = current
}

func (r *RouteTripsState) persist() error {
	stored := routeStateFile{
		ServiceDate: r.serviceDate.String(),
		TripStates:  r.trips,
	}
	contents, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshaling trip state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(r.path, contents, 0644)
}

// TripsStateManager lazily opens per-route state. Each worker owns one
// manager and the orchestrator keeps route sets disjoint across workers, so
// no locking is needed.
type TripsStateManager struct {
	log    *log.Logger
	dir    string
	clock  *servicedate.Clock
	routes map[string]*RouteTripsState
}

// NewTripsStateManager creates a manager storing snapshots under dir.
func NewTripsStateManager(log *log.Logger, dir string, clock *servicedate.Clock) *TripsStateManager {
	return &TripsStateManager{
		log:    log,
		dir:    dir,
		clock:  clock,
		routes: make(map[string]*RouteTripsState),
	}
}

// Route returns the state for routeID, restoring it from disk on first use.
func (m *TripsStateManager) Route(routeID string) *RouteTripsState {
	state, present := m.routes[routeID]
	if !present {
		state = newRouteTripsState(m.log, m.dir, routeID, m.clock)
		m.routes[routeID] = state
	}
	return state
}
