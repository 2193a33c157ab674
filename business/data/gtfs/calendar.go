package gtfs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/transitmatters/gobble/foundation/servicedate"
)

// calendarRow is one row of calendar.txt.
type calendarRow struct {
	ServiceID string `csv:"service_id"`
	Monday    int    `csv:"monday"`
	Tuesday   int    `csv:"tuesday"`
	Wednesday int    `csv:"wednesday"`
	Thursday  int    `csv:"thursday"`
	Friday    int    `csv:"friday"`
	Saturday  int    `csv:"saturday"`
	Sunday    int    `csv:"sunday"`
	StartDate int    `csv:"start_date"`
	EndDate   int    `csv:"end_date"`
}

// runsOn reports whether the row's weekday flag for date is set and the date
// falls inside the row's validity window.
func (row calendarRow) runsOn(date servicedate.Date) bool {
	dateInt := date.DateInt()
	if dateInt < row.StartDate || dateInt > row.EndDate {
		return false
	}
	switch date.Weekday() {
	case time.Monday:
		return row.Monday == 1
	case time.Tuesday:
		return row.Tuesday == 1
	case time.Wednesday:
		return row.Wednesday == 1
	case time.Thursday:
		return row.Thursday == 1
	case time.Friday:
		return row.Friday == 1
	case time.Saturday:
		return row.Saturday == 1
	case time.Sunday:
		return row.Sunday == 1
	}
	return false
}

// calendarDateRow is one row of calendar_dates.txt.
type calendarDateRow struct {
	ServiceID     string `csv:"service_id"`
	Date          int    `csv:"date"`
	ExceptionType int    `csv:"exception_type"`
}

const (
	exceptionServiceAdded   = 1
	exceptionServiceRemoved = 2
)

// ActiveServices resolves the service ids running on date from the calendar
// files extracted under dir. calendar.txt supplies the weekly pattern and
// calendar_dates.txt the per-date exceptions; either file may be absent, but
// not both.
func ActiveServices(dir string, date servicedate.Date) (map[string]bool, error) {
	services := make(map[string]bool)

	var calendar []calendarRow
	calendarErr := readCSVFile(filepath.Join(dir, "calendar.txt"), &calendar)
	if calendarErr != nil && !os.IsNotExist(calendarErr) {
		return nil, calendarErr
	}
	for _, row := range calendar {
		if row.runsOn(date) {
			services[row.ServiceID] = true
		}
	}

	var exceptions []calendarDateRow
	exceptionsErr := readCSVFile(filepath.Join(dir, "calendar_dates.txt"), &exceptions)
	if exceptionsErr != nil && !os.IsNotExist(exceptionsErr) {
		return nil, exceptionsErr
	}
	if os.IsNotExist(calendarErr) && os.IsNotExist(exceptionsErr) {
		return nil, fmt.Errorf("archive %s has neither calendar.txt nor calendar_dates.txt", dir)
	}

	dateInt := date.DateInt()
	for _, row := range exceptions {
		if row.Date != dateInt {
			continue
		}
		switch row.ExceptionType {
		case exceptionServiceAdded:
			services[row.ServiceID] = true
		case exceptionServiceRemoved:
			delete(services, row.ServiceID)
		}
	}
	return services, nil
}

// readCSVFile unmarshals one csv file into out. A missing file is returned
// as the raw os.IsNotExist error so callers can treat it as optional.
func readCSVFile(path string, out interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()
	if err := gocsv.Unmarshal(file, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
