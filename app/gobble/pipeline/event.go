package pipeline

import (
	"strconv"
	"time"

	"github.com/transitmatters/gobble/foundation/servicedate"
)

// Event is one output csv row. Field order matches the fixed shard schema;
// optional metrics render as empty strings.
type Event struct {
	ServiceDate         string `csv:"service_date"`
	RouteID             string `csv:"route_id"`
	TripID              string `csv:"trip_id"`
	DirectionID         int    `csv:"direction_id"`
	StopID              string `csv:"stop_id"`
	StopSequence        int    `csv:"stop_sequence"`
	VehicleID           string `csv:"vehicle_id"`
	VehicleLabel        string `csv:"vehicle_label"`
	EventType           string `csv:"event_type"`
	EventTime           string `csv:"event_time"`
	ScheduledHeadway    string `csv:"scheduled_headway"`
	ScheduledTT         string `csv:"scheduled_tt"`
	VehicleConsist      string `csv:"vehicle_consist"`
	OccupancyStatus     string `csv:"occupancy_status"`
	OccupancyPercentage string `csv:"occupancy_percentage"`
}

// newEvent builds the row for update with the detector's event type and stop
// attribution. Vehicles without an id take the reserved id "0".
func newEvent(update *VehicleUpdate, eventType string, stopID string, serviceDate servicedate.Date, eventTime time.Time) *Event {
	vehicleID := update.VehicleID
	if vehicleID == "" {
		vehicleID = "0"
	}
	return &Event{
		ServiceDate:         serviceDate.String(),
		RouteID:             update.RouteID,
		TripID:              update.TripID,
		DirectionID:         update.DirectionID,
		StopID:              stopID,
		StopSequence:        update.StopSequence,
		VehicleID:           vehicleID,
		VehicleLabel:        update.VehicleLabel,
		EventType:           eventType,
		EventTime:           eventTime.Format(time.RFC3339),
		VehicleConsist:      update.Consist(),
		OccupancyStatus:     update.OccupancyStatusField(),
		OccupancyPercentage: update.OccupancyPercentageField(),
	}
}

// setEnrichmentFields attaches schedule metrics to the row. Unknown metrics
// stay empty, the schedule-miss policy.
func (e *Event) setEnrichmentFields(headway int, headwayKnown bool, travelTime int, travelTimeKnown bool) {
	if headwayKnown {
		e.ScheduledHeadway = strconv.Itoa(headway)
	}
	if travelTimeKnown {
		e.ScheduledTT = strconv.Itoa(travelTime)
	}
}
