package gtfs

import (
	"testing"

	"github.com/matryer/is"
	"github.com/transitmatters/gobble/foundation/servicedate"
)

// fixtureArchiveDir lays out a small commuter rail feed for 2023-05-10, a
// Wednesday. Three inbound trips call at stop NHRML-0254 at 04:55, 05:10 and
// 05:25, each three minutes after leaving its first stop.
func fixtureArchiveDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeArchiveFile(t, dir, "calendar.txt",
		"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n"+
			"Weekday,1,1,1,1,1,0,0,20230401,20230601\n"+
			"Weekend,0,0,0,0,0,1,1,20230401,20230601\n")
	writeArchiveFile(t, dir, "trips.txt",
		"route_id,service_id,trip_id,trip_headsign,direction_id\n"+
			"CR-Lowell,Weekday,60063974,North Station,0\n"+
			"CR-Lowell,Weekday,60063977,North Station,0\n"+
			"CR-Lowell,Weekday,60063980,North Station,0\n"+
			"CR-Lowell,Weekend,60063999,North Station,0\n"+
			"Shuttle-Generic,Weekday,70000001,Replacement,0\n")
	writeArchiveFile(t, dir, "stop_times.txt",
		"trip_id,arrival_time,departure_time,stop_id,stop_sequence\n"+
			"60063974,04:52:00,04:52:00,NHRML-0301,1\n"+
			"60063974,04:55:00,04:56:00,NHRML-0254,2\n"+
			"60063977,05:07:00,05:07:00,NHRML-0301,1\n"+
			"60063977,05:10:00,05:11:00,NHRML-0254,2\n"+
			"60063980,05:22:00,05:22:00,NHRML-0301,1\n"+
			"60063980,05:25:00,05:26:00,NHRML-0254,2\n"+
			"60063999,09:00:00,09:00:00,NHRML-0254,1\n"+
			"70000001,05:00:00,05:00:00,NHRML-0254,1\n")
	writeArchiveFile(t, dir, "stops.txt",
		"stop_id,stop_name\n"+
			"NHRML-0301,North Billerica\n"+
			"NHRML-0254,Wilmington\n")
	return dir
}

func loadFixtureArchive(t *testing.T, routeFilter map[string]bool) *ScheduleArchive {
	t.Helper()
	archive, err := LoadArchive(fixtureArchiveDir(t), servicedate.Date{Year: 2023, Month: 5, Day: 10}, routeFilter)
	if err != nil {
		t.Fatal(err)
	}
	return archive
}

func TestLoadArchiveFiltersServiceAndRoute(t *testing.T) {
	is := is.New(t)
	archive := loadFixtureArchive(t, map[string]bool{"CR-Lowell": true})

	is.Equal(archive.RouteCount(), 1)
	is.Equal(len(archive.TripsOnRoute("CR-Lowell")), 3)
	// inactive weekend trip drops its stop times too
	is.Equal(len(archive.StopTimesOnRoute("CR-Lowell")), 6)
	is.Equal(len(archive.TripsOnRoute("Shuttle-Generic")), 0)
	is.Equal(archive.StopName("NHRML-0254"), "Wilmington")
	is.Equal(archive.StopName("place-unknown"), "place-unknown")
}

func TestEnrichOnTime(t *testing.T) {
	is := is.New(t)
	archive := loadFixtureArchive(t, nil)

	// event lands 30 seconds after the 05:10 scheduled arrival
	enriched := archive.Enrich("CR-Lowell", 0, "NHRML-0254", 5*3600+10*60+30)
	is.True(enriched.HeadwayKnown)
	is.Equal(enriched.Headway, 900)
	is.True(enriched.TravelTimeKnown)
	is.Equal(enriched.TravelTime, 180)
	is.Equal(enriched.ScheduledTripID, "60063977")
}

func TestEnrichVeryLate(t *testing.T) {
	is := is.New(t)
	archive := loadFixtureArchive(t, nil)

	// 05:26:45 is past the 05:25 trip, which becomes the nearest match
	enriched := archive.Enrich("CR-Lowell", 0, "NHRML-0254", 5*3600+26*60+45)
	is.True(enriched.HeadwayKnown)
	is.Equal(enriched.Headway, 900)
	is.Equal(enriched.ScheduledTripID, "60063980")
}

func TestEnrichFirstArrivalHasNoHeadway(t *testing.T) {
	is := is.New(t)
	archive := loadFixtureArchive(t, nil)

	enriched := archive.Enrich("CR-Lowell", 0, "NHRML-0254", 4*3600+55*60)
	is.True(!enriched.HeadwayKnown)
	is.True(enriched.TravelTimeKnown)
	is.Equal(enriched.ScheduledTripID, "60063974")
}

func TestEnrichBeforeFirstArrival(t *testing.T) {
	is := is.New(t)
	archive := loadFixtureArchive(t, nil)

	// before any scheduled arrival the nearest match is still the first trip
	enriched := archive.Enrich("CR-Lowell", 0, "NHRML-0254", 4*3600)
	is.True(!enriched.HeadwayKnown)
	is.Equal(enriched.ScheduledTripID, "60063974")
}

func TestEnrichUnknownStop(t *testing.T) {
	is := is.New(t)
	archive := loadFixtureArchive(t, nil)

	enriched := archive.Enrich("CR-Lowell", 0, "place-nowhere", 5*3600)
	is.True(!enriched.HeadwayKnown)
	is.True(!enriched.TravelTimeKnown)
	is.Equal(enriched.ScheduledTripID, "")
}

func TestEnrichNearestTiesTowardEarlier(t *testing.T) {
	is := is.New(t)
	archive := loadFixtureArchive(t, nil)

	// 05:17:30 is equidistant from 05:10 and 05:25
	enriched := archive.Enrich("CR-Lowell", 0, "NHRML-0254", 5*3600+17*60+30)
	is.Equal(enriched.ScheduledTripID, "60063977")
}
