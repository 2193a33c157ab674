package gtfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	"github.com/transitmatters/gobble/foundation/servicedate"
)

func writeArchiveFile(t *testing.T, dir string, name string, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestActiveServices(t *testing.T) {
	dir := t.TempDir()
	writeArchiveFile(t, dir, "calendar.txt",
		"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n"+
			"Weekday,1,1,1,1,1,0,0,20230401,20230601\n"+
			"Weekend,0,0,0,0,0,1,1,20230401,20230601\n"+
			"Expired,1,1,1,1,1,1,1,20220401,20220601\n")
	writeArchiveFile(t, dir, "calendar_dates.txt",
		"service_id,date,exception_type\n"+
			"Holiday,20230510,1\n"+
			"Weekday,20230510,2\n"+
			"Weekday,20230511,2\n")

	is := is.New(t)

	// 2023-05-10 is a Wednesday with both exceptions applied
	services, err := ActiveServices(dir, servicedate.Date{Year: 2023, Month: 5, Day: 10})
	is.NoErr(err)
	is.Equal(services, map[string]bool{"Holiday": true})

	// a Friday without exceptions
	services, err = ActiveServices(dir, servicedate.Date{Year: 2023, Month: 5, Day: 12})
	is.NoErr(err)
	is.Equal(services, map[string]bool{"Weekday": true})

	// a Saturday
	services, err = ActiveServices(dir, servicedate.Date{Year: 2023, Month: 5, Day: 13})
	is.NoErr(err)
	is.Equal(services, map[string]bool{"Weekend": true})
}

func TestActiveServicesCalendarDatesOnly(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	writeArchiveFile(t, dir, "calendar_dates.txt",
		"service_id,date,exception_type\n"+
			"Special,20230510,1\n")

	services, err := ActiveServices(dir, servicedate.Date{Year: 2023, Month: 5, Day: 10})
	is.NoErr(err)
	is.Equal(services, map[string]bool{"Special": true})
}

func TestActiveServicesMissingBothFiles(t *testing.T) {
	is := is.New(t)
	_, err := ActiveServices(t.TempDir(), servicedate.Date{Year: 2023, Month: 5, Day: 10})
	is.True(err != nil)
}
