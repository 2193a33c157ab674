package gtfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/transitmatters/gobble/foundation/servicedate"
)

func TestManagerUpdateIfNecessary(t *testing.T) {
	is := is.New(t)

	// lay out a pre-populated cache so no download happens
	cacheRoot := filepath.Join(t.TempDir(), "gtfs_archives")
	archiveDir := filepath.Join(cacheRoot, "20230401")
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"calendar.txt", "trips.txt", "stop_times.txt", "stops.txt"} {
		contents, err := os.ReadFile(filepath.Join(fixtureArchiveDir(t), name))
		if err != nil {
			t.Fatal(err)
		}
		writeArchiveFile(t, archiveDir, name, string(contents))
	}
	writeArchiveFile(t, cacheRoot, "archived_feeds.txt",
		"feed_start_date,feed_end_date,archive_url\n"+
			"20230401,20230601,https://cdn.example.com/archives/20230401.zip\n")

	loc, err := time.LoadLocation("America/New_York")
	is.NoErr(err)
	now := time.Date(2023, 5, 10, 12, 0, 0, 0, loc)
	clock := servicedate.NewClockWithNow(loc, func() time.Time { return now })

	registry := NewRegistry(discardLogger(), "http://127.0.0.1:1/archived_feeds.txt", cacheRoot, 36500)
	manager := NewManager(discardLogger(), registry, clock, map[string]bool{"CR-Lowell": true})

	is.True(manager.Current() == nil)
	is.NoErr(manager.UpdateIfNecessary())

	archive := manager.Current()
	is.True(archive != nil)
	is.Equal(archive.ServiceDate, servicedate.Date{Year: 2023, Month: 5, Day: 10})

	// same service date, no reload
	is.NoErr(manager.UpdateIfNecessary())
	is.True(manager.Current() == archive)

	// next day at a different wall hour, so the clock's hour-keyed cache
	// refreshes and the rollover is observable
	now = time.Date(2023, 5, 11, 13, 0, 0, 0, loc)
	is.NoErr(manager.UpdateIfNecessary())
	next := manager.Current()
	is.True(next != archive)
	is.Equal(next.ServiceDate, servicedate.Date{Year: 2023, Month: 5, Day: 11})
}
