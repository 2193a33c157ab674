package gtfs

import (
	"fmt"
	"strconv"
	"strings"
)

// ScheduleSeconds is a GTFS schedule time expressed as seconds after midnight
// of the service date. Hours past 23 are valid and indicate service running
// into the following calendar day.
type ScheduleSeconds int

// MaximumScheduleSeconds bounds how far past midnight a schedule time may
// reach, 30 hours after the start of the service date.
const MaximumScheduleSeconds = 60 * 60 * 30

// ParseScheduleTime parses an "H:MM:SS" or "HH:MM:SS" schedule time.
func ParseScheduleTime(value string) (ScheduleSeconds, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed schedule time %q", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("malformed schedule time %q", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("malformed schedule time %q", value)
	}
	seconds, err := strconv.Atoi(parts[2])
	if err != nil || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("malformed schedule time %q", value)
	}
	return ScheduleSeconds(hours*3600 + minutes*60 + seconds), nil
}

// UnmarshalCSV parses the stop_times.txt representation. Empty times, which
// GTFS allows on untimed intermediate stops, parse to -1.
func (s *ScheduleSeconds) UnmarshalCSV(value string) error {
	if strings.TrimSpace(value) == "" {
		*s = -1
		return nil
	}
	parsed, err := ParseScheduleTime(value)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// String formats the seconds back to HH:MM:SS, hours unwrapped.
func (s ScheduleSeconds) String() string {
	if s < 0 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d", int(s)/3600, (int(s)%3600)/60, int(s)%60)
}
