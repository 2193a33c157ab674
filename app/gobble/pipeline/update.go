// Package pipeline turns raw vehicle position feeds into stop event records:
// normalised updates come in from a feed source, pass through per-trip state
// tracking and event detection, get enriched against the day's schedule, and
// land as csv rows in date partitioned shards.
package pipeline

import (
	"strconv"
	"strings"
	"time"
)

// StopStatus defines the relationship a vehicle has to its next stop.
type StopStatus int

const (
	StatusUnknown StopStatus = -1
	// StatusIncomingAt indicates the vehicle is just about to arrive at the stop.
	StatusIncomingAt StopStatus = 0
	// StatusStoppedAt indicates the vehicle is at the stop.
	StatusStoppedAt StopStatus = 1
	// StatusInTransitTo indicates the vehicle has departed a previous stop and is
	// in transit to the next stop.
	StatusInTransitTo StopStatus = 2
)

// ParseStopStatus maps a feed status string to a StopStatus.
func ParseStopStatus(s string) StopStatus {
	switch s {
	case "INCOMING_AT":
		return StatusIncomingAt
	case "STOPPED_AT":
		return StatusStoppedAt
	case "IN_TRANSIT_TO":
		return StatusInTransitTo
	}
	return StatusUnknown
}

// String - Stringer interface for StopStatus
func (s StopStatus) String() string {
	switch s {
	case StatusIncomingAt:
		return "INCOMING_AT"
	case StatusStoppedAt:
		return "STOPPED_AT"
	case StatusInTransitTo:
		return "IN_TRANSIT_TO"
	}
	return "UNKNOWN"
}

// EventHint maps a stop status to the event type a vehicle in that status
// suggests: a stopped or arriving vehicle hints an arrival, a moving vehicle
// hints a departure.
func (s StopStatus) EventHint() string {
	switch s {
	case StatusStoppedAt, StatusIncomingAt:
		return EventTypeArrival
	case StatusInTransitTo:
		return EventTypeDeparture
	}
	return EventTypeDeparture
}

// Event types recorded in the output shards.
const (
	EventTypeArrival   = "ARR"
	EventTypeDeparture = "DEP"
)

// Carriage is one car of a multi-carriage consist with its own occupancy.
type Carriage struct {
	Label               string
	OccupancyStatus     string
	OccupancyPercentage *int
}

// VehicleUpdate is the canonical update record both feed sources produce.
// Optional feed fields that are absent stay zero valued, except StopID whose
// absence short-circuits processing downstream.
type VehicleUpdate struct {
	RouteID      string
	TripID       string
	DirectionID  int
	VehicleID    string
	VehicleLabel string
	StopID       string
	StopSequence int
	Status       StopStatus
	UpdatedAt    time.Time

	OccupancyStatus     string
	OccupancyPercentage *int
	Carriages           []Carriage
}

// Consist renders the vehicle consist for the output row. A train reports
// its carriages pipe-delimited, anything else falls back to the vehicle
// label.
func (u *VehicleUpdate) Consist() string {
	if len(u.Carriages) == 0 {
		return u.VehicleLabel
	}
	labels := make([]string, len(u.Carriages))
	for i, carriage := range u.Carriages {
		labels[i] = carriage.Label
	}
	return strings.Join(labels, "|")
}

// OccupancyStatusField renders occupancy status, per carriage when a consist
// is present.
func (u *VehicleUpdate) OccupancyStatusField() string {
	if len(u.Carriages) == 0 {
		return u.OccupancyStatus
	}
	statuses := make([]string, len(u.Carriages))
	for i, carriage := range u.Carriages {
		statuses[i] = carriage.OccupancyStatus
	}
	return strings.Join(statuses, "|")
}

// OccupancyPercentageField renders occupancy percentage, per carriage when a
// consist is present. Unknown percentages render empty.
func (u *VehicleUpdate) OccupancyPercentageField() string {
	if len(u.Carriages) == 0 {
		return formatPercentage(u.OccupancyPercentage)
	}
	percentages := make([]string, len(u.Carriages))
	for i, carriage := range u.Carriages {
		percentages[i] = formatPercentage(carriage.OccupancyPercentage)
	}
	return strings.Join(percentages, "|")
}

func formatPercentage(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// sameCarriages compares two consists by label and occupancy.
func sameCarriages(a, b []Carriage) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Label != b[i].Label || a[i].OccupancyStatus != b[i].OccupancyStatus {
			return false
		}
		if (a[i].OccupancyPercentage == nil) != (b[i].OccupancyPercentage == nil) {
			return false
		}
		if a[i].OccupancyPercentage != nil && *a[i].OccupancyPercentage != *b[i].OccupancyPercentage {
			return false
		}
	}
	return true
}
