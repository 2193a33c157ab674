package pipeline

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/matryer/is"

	"github.com/transitmatters/gobble/business/data/agency"
	"github.com/transitmatters/gobble/business/data/gtfs"
	"github.com/transitmatters/gobble/foundation/servicedate"
)

// newTestSchedule lays out a cached archive with two scheduled Red line
// trips reaching stop 70061 at 10:15 and 10:30 on 2024-01-04, a Thursday,
// and returns a loaded schedule manager for that date.
func newTestSchedule(t *testing.T, clock *servicedate.Clock) *gtfs.Manager {
	t.Helper()
	cacheRoot := filepath.Join(t.TempDir(), "gtfs_archives")
	dir := filepath.Join(cacheRoot, "20240101")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"Weekday,1,1,1,1,1,0,0,20240101,20240301\n",
		"trips.txt": "route_id,service_id,trip_id,trip_headsign,direction_id\n" +
			"Red,Weekday,sched_1,Ashmont,0\n" +
			"Red,Weekday,sched_2,Ashmont,0\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"sched_1,10:12:00,10:12:00,70059,1\n" +
			"sched_1,10:15:00,10:15:30,70061,2\n" +
			"sched_2,10:27:00,10:27:00,70059,1\n" +
			"sched_2,10:30:00,10:30:30,70061,2\n",
		"stops.txt": "stop_id,stop_name\n70059,Porter\n70061,Alewife\n",
	}
	for name, contents := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
	}
	registryFile := "feed_start_date,feed_end_date,archive_url\n" +
		"20240101,20240301,https://cdn.example.com/archives/20240101.zip\n"
	if err := os.WriteFile(filepath.Join(cacheRoot, "archived_feeds.txt"), []byte(registryFile), 0644); err != nil {
		t.Fatal(err)
	}

	registry := gtfs.NewRegistry(testLogger(), "http://127.0.0.1:1/archived_feeds.txt", cacheRoot, 36500)
	manager := gtfs.NewManager(testLogger(), registry, clock, map[string]bool{"Red": true})
	if err := manager.UpdateIfNecessary(); err != nil {
		t.Fatal(err)
	}
	return manager
}

type processorFixture struct {
	processor *Processor
	dataRoot  string
	clock     *servicedate.Clock
}

func newProcessorFixture(t *testing.T, schedule *gtfs.Manager, clock *servicedate.Clock) *processorFixture {
	t.Helper()
	catalog, err := agency.Load("mbta")
	if err != nil {
		t.Fatal(err)
	}
	dataRoot := t.TempDir()
	if schedule == nil {
		schedule = gtfs.NewManager(testLogger(), nil, clock, nil)
	}
	states := NewTripsStateManager(testLogger(), filepath.Join(dataRoot, "trip_states"), clock)
	processor := NewProcessor(testLogger(), catalog, clock, schedule, states, NewShardWriter(dataRoot), nil)
	return &processorFixture{processor: processor, dataRoot: dataRoot, clock: clock}
}

func (f *processorFixture) readShard(t *testing.T, mode agency.Mode, routeID string, directionID int, stopID string) []*Event {
	t.Helper()
	date := f.clock.Current()
	path := filepath.Join(f.dataRoot, OutputDirPath(mode, routeID, directionID, stopID, date), eventsFileName)
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = file.Close()
	}()
	var events []*Event
	if err := gocsv.UnmarshalFile(file, &events); err != nil {
		t.Fatal(err)
	}
	return events
}

func TestProcessorWritesEnrichedDeparture(t *testing.T) {
	is := is.New(t)
	loc, err := time.LoadLocation("America/New_York")
	is.NoErr(err)
	clock := servicedate.NewClockWithNow(loc, func() time.Time {
		return time.Date(2024, 1, 4, 10, 35, 0, 0, loc)
	})
	fixture := newProcessorFixture(t, newTestSchedule(t, clock), clock)

	seed := &VehicleUpdate{
		RouteID: "Red", TripID: "trip_123", DirectionID: 0,
		VehicleID: "y1841", VehicleLabel: "1841",
		StopID: "70061", StopSequence: 5, Status: StatusStoppedAt,
		UpdatedAt: time.Date(2024, 1, 4, 10, 25, 0, 0, loc),
	}
	fixture.processor.Process(seed)

	departure := &VehicleUpdate{
		RouteID: "Red", TripID: "trip_123", DirectionID: 0,
		VehicleID: "y1841", VehicleLabel: "1841",
		StopID: "70063", StopSequence: 6, Status: StatusInTransitTo,
		UpdatedAt: time.Date(2024, 1, 4, 10, 30, 30, 0, loc),
	}
	fixture.processor.Process(departure)

	events := fixture.readShard(t, agency.ModeRapid, "Red", 0, "70061")
	is.Equal(len(events), 1)
	event := events[0]
	is.Equal(event.EventType, EventTypeDeparture)
	is.Equal(event.StopID, "70061")
	is.Equal(event.ServiceDate, "2024-01-04")
	is.Equal(event.EventTime, "2024-01-04T10:30:30-05:00")
	is.Equal(event.ScheduledHeadway, "900")
	is.Equal(event.ScheduledTT, "180")
	is.Equal(event.VehicleConsist, "1841")
}

func TestProcessorLogsEventWithStopName(t *testing.T) {
	is := is.New(t)
	loc, err := time.LoadLocation("America/New_York")
	is.NoErr(err)
	clock := servicedate.NewClockWithNow(loc, func() time.Time {
		return time.Date(2024, 1, 4, 10, 35, 0, 0, loc)
	})
	schedule := newTestSchedule(t, clock)
	catalog, err := agency.Load("mbta")
	is.NoErr(err)

	var logBuf bytes.Buffer
	logger := log.New(&logBuf, "", 0)
	dataRoot := t.TempDir()
	states := NewTripsStateManager(testLogger(), filepath.Join(dataRoot, "trip_states"), clock)
	processor := NewProcessor(logger, catalog, clock, schedule, states, NewShardWriter(dataRoot), nil)

	processor.Process(&VehicleUpdate{
		RouteID: "Red", TripID: "trip_123", DirectionID: 0,
		StopID: "70061", StopSequence: 5, Status: StatusStoppedAt,
		UpdatedAt: time.Date(2024, 1, 4, 10, 25, 0, 0, loc),
	})
	processor.Process(&VehicleUpdate{
		RouteID: "Red", TripID: "trip_123", DirectionID: 0,
		StopID: "70063", StopSequence: 6, Status: StatusInTransitTo,
		UpdatedAt: time.Date(2024, 1, 4, 10, 30, 30, 0, loc),
	})

	// the written event logs the stop's human-readable name from stops.txt
	if !strings.Contains(logBuf.String(), "stop=Alewife") {
		t.Errorf("event log %q does not name the stop", logBuf.String())
	}
}

func TestProcessorSuppressesReplayedUpdate(t *testing.T) {
	is := is.New(t)
	loc, _ := time.LoadLocation("America/New_York")
	clock := servicedate.NewClockWithNow(loc, func() time.Time {
		return time.Date(2024, 1, 4, 10, 35, 0, 0, loc)
	})
	fixture := newProcessorFixture(t, nil, clock)

	seed := &VehicleUpdate{
		RouteID: "Red", TripID: "trip_123", DirectionID: 0,
		StopID: "70061", StopSequence: 5, Status: StatusStoppedAt,
		UpdatedAt: time.Date(2024, 1, 4, 10, 28, 0, 0, loc),
	}
	fixture.processor.Process(seed)

	departure := &VehicleUpdate{
		RouteID: "Red", TripID: "trip_123", DirectionID: 0,
		StopID: "70063", StopSequence: 6, Status: StatusInTransitTo,
		UpdatedAt: time.Date(2024, 1, 4, 10, 30, 0, 0, loc),
	}
	fixture.processor.Process(departure)
	// identical timestamp replay must not write a second row
	fixture.processor.Process(departure)

	events := fixture.readShard(t, agency.ModeRapid, "Red", 0, "70061")
	is.Equal(len(events), 1)
}

func TestProcessorBusStopFilter(t *testing.T) {
	is := is.New(t)
	loc, _ := time.LoadLocation("America/New_York")
	clock := servicedate.NewClockWithNow(loc, func() time.Time {
		return time.Date(2024, 1, 4, 10, 35, 0, 0, loc)
	})

	tests := []struct {
		name     string
		fromStop string
		wantRow  bool
	}{
		{"unlisted stop rejected", "99", false},
		{"listed stop recorded", "64", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newProcessorFixture(t, nil, clock)
			seed := &VehicleUpdate{
				RouteID: "1", TripID: "trip_bus", DirectionID: 0,
				StopID: tt.fromStop, StopSequence: 5, Status: StatusStoppedAt,
				UpdatedAt: time.Date(2024, 1, 4, 10, 25, 0, 0, loc),
			}
			fixture.processor.Process(seed)
			departure := &VehicleUpdate{
				RouteID: "1", TripID: "trip_bus", DirectionID: 0,
				StopID: "110", StopSequence: 6, Status: StatusInTransitTo,
				UpdatedAt: time.Date(2024, 1, 4, 10, 30, 0, 0, loc),
			}
			fixture.processor.Process(departure)

			events := fixture.readShard(t, agency.ModeBus, "1", 0, tt.fromStop)
			if tt.wantRow {
				is.Equal(len(events), 1)
			} else {
				is.Equal(len(events), 0)
			}
		})
	}
}

func TestProcessorIgnoresUpdateWithoutStop(t *testing.T) {
	is := is.New(t)
	loc, _ := time.LoadLocation("America/New_York")
	clock := servicedate.NewClockWithNow(loc, func() time.Time {
		return time.Date(2024, 1, 4, 10, 35, 0, 0, loc)
	})
	fixture := newProcessorFixture(t, nil, clock)

	fixture.processor.Process(&VehicleUpdate{
		RouteID: "Red", TripID: "trip_123",
		StopSequence: 5, Status: StatusStoppedAt,
		UpdatedAt: time.Date(2024, 1, 4, 10, 25, 0, 0, loc),
	})

	// no state file means no state change happened
	_, err := os.Stat(filepath.Join(fixture.dataRoot, "trip_states", "Red.json"))
	is.True(os.IsNotExist(err))
}

func TestProcessorVehicleIDFallback(t *testing.T) {
	is := is.New(t)
	loc, _ := time.LoadLocation("America/New_York")
	clock := servicedate.NewClockWithNow(loc, func() time.Time {
		return time.Date(2024, 1, 4, 10, 35, 0, 0, loc)
	})
	fixture := newProcessorFixture(t, nil, clock)

	seed := &VehicleUpdate{
		RouteID: "Red", TripID: "trip_123", DirectionID: 0,
		StopID: "70061", StopSequence: 5, Status: StatusStoppedAt,
		UpdatedAt: time.Date(2024, 1, 4, 10, 25, 0, 0, loc),
	}
	fixture.processor.Process(seed)
	fixture.processor.Process(&VehicleUpdate{
		RouteID: "Red", TripID: "trip_123", DirectionID: 0,
		StopID: "70063", StopSequence: 6, Status: StatusInTransitTo,
		UpdatedAt: time.Date(2024, 1, 4, 10, 30, 0, 0, loc),
	})

	events := fixture.readShard(t, agency.ModeRapid, "Red", 0, "70061")
	is.Equal(len(events), 1)
	is.Equal(events[0].VehicleID, "0")
	if strings.Contains(events[0].EventTime, "Z") {
		t.Errorf("event time %s not in local zone", events[0].EventTime)
	}
}
