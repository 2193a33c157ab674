// Package servicedate maps wall-clock times to transit service dates.
// A service day runs from 3am to 3am the following morning, so timestamps
// between midnight and 3am belong to the previous calendar day's service.
package servicedate

import (
	"fmt"
	"sync"
	"time"
)

// rolloverHour is the local hour at which a new service date begins.
const rolloverHour = 3

// Date is a calendar date with no time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// FromTime returns the calendar date of t in t's location.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Parse reads a Date from an ISO-8601 date string such as "2024-01-04".
func Parse(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// String implements Stringer, formatting the date as ISO-8601.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// DateInt returns the date as a YYYYMMDD integer, the form GTFS feeds use.
func (d Date) DateInt() int {
	return d.Year*10000 + int(d.Month)*100 + d.Day
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Before reports whether d falls before other.
func (d Date) Before(other Date) bool {
	return d.DateInt() < other.DateInt()
}

// AddDays returns the date n calendar days after d.
func (d Date) AddDays(n int) Date {
	return FromTime(time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).AddDate(0, 0, n))
}

// Weekday returns the day of the week d falls on.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

// Clock resolves service dates in a fixed agency time zone. The current
// service date is cached per wall hour to avoid repeated zone conversions
// on the hot path.
type Clock struct {
	loc *time.Location
	now func() time.Time

	mu         sync.Mutex
	cachedHour int
	cached     Date
}

// NewClock creates a Clock for the agency's local time zone.
func NewClock(loc *time.Location) *Clock {
	return NewClockWithNow(loc, time.Now)
}

// NewClockWithNow creates a Clock with a caller supplied time source.
func NewClockWithNow(loc *time.Location, now func() time.Time) *Clock {
	return &Clock{loc: loc, now: now, cachedHour: -1}
}

// Location returns the clock's time zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current wall-clock time in the agency time zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// ServiceDate returns the service date that t belongs to. Times before the
// 3am rollover are attributed to the previous calendar day.
func (c *Clock) ServiceDate(t time.Time) Date {
	local := t.In(c.loc)
	if local.Hour() >= rolloverHour {
		return FromTime(local)
	}
	return FromTime(local.AddDate(0, 0, -1))
}

// Current returns the service date of the current wall-clock time. The
// result is cached until the hour changes.
func (c *Clock) Current() Date {
	now := c.now().In(c.loc)
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Hour() != c.cachedHour {
		c.cached = c.ServiceDate(now)
		c.cachedHour = now.Hour()
	}
	return c.cached
}

// Midnight returns 12am local time on the given calendar date.
func (c *Clock) Midnight(d Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, c.loc)
}
