package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/matryer/is"
)

const sampleVehicleJSON = `{
	"id": "y1841",
	"attributes": {
		"label": "1841",
		"current_status": "STOPPED_AT",
		"current_stop_sequence": 5,
		"direction_id": 1,
		"occupancy_status": "MANY_SEATS_AVAILABLE",
		"updated_at": "2024-01-04T10:30:00-05:00",
		"carriages": [
			{"label": "1841", "occupancy_status": "MANY_SEATS_AVAILABLE", "occupancy_percentage": 20},
			{"label": "1842", "occupancy_status": "FEW_SEATS_AVAILABLE", "occupancy_percentage": null}
		]
	},
	"relationships": {
		"route": {"data": {"id": "Red"}},
		"stop": {"data": {"id": "70061"}},
		"trip": {"data": {"id": "trip_123"}}
	}
}`

func TestSSEPayloadToUpdate(t *testing.T) {
	is := is.New(t)
	var payload ssePayload
	is.NoErr(json.Unmarshal([]byte(sampleVehicleJSON), &payload))

	update, err := payload.toUpdate()
	is.NoErr(err)
	is.True(update != nil)
	is.Equal(update.RouteID, "Red")
	is.Equal(update.TripID, "trip_123")
	is.Equal(update.DirectionID, 1)
	is.Equal(update.VehicleID, "y1841")
	is.Equal(update.VehicleLabel, "1841")
	is.Equal(update.StopID, "70061")
	is.Equal(update.StopSequence, 5)
	is.Equal(update.Status, StatusStoppedAt)
	is.Equal(len(update.Carriages), 2)
	is.Equal(*update.Carriages[0].OccupancyPercentage, 20)
	is.True(update.Carriages[1].OccupancyPercentage == nil)

	loc, err := time.LoadLocation("America/New_York")
	is.NoErr(err)
	is.True(update.UpdatedAt.Equal(time.Date(2024, 1, 4, 10, 30, 0, 0, loc)))
}

func TestSSEPayloadDropsWithoutTripOrRoute(t *testing.T) {
	is := is.New(t)
	var payload ssePayload
	is.NoErr(json.Unmarshal([]byte(sampleVehicleJSON), &payload))
	payload.Relationships.Trip.Data = nil

	update, err := payload.toUpdate()
	is.NoErr(err)
	is.True(update == nil)
}

func TestSSEPayloadKeepsMissingStop(t *testing.T) {
	is := is.New(t)
	var payload ssePayload
	is.NoErr(json.Unmarshal([]byte(sampleVehicleJSON), &payload))
	payload.Relationships.Stop.Data = nil

	update, err := payload.toUpdate()
	is.NoErr(err)
	is.True(update != nil)
	is.Equal(update.StopID, "")
}

func TestSSEPayloadRejectsBadTimestamp(t *testing.T) {
	is := is.New(t)
	var payload ssePayload
	is.NoErr(json.Unmarshal([]byte(sampleVehicleJSON), &payload))
	payload.Attributes.UpdatedAt = "yesterday"

	_, err := payload.toUpdate()
	is.True(err != nil)
}

func TestSSEStreamURL(t *testing.T) {
	is := is.New(t)
	got, err := sseStreamURL("https://api-v3.mbta.com/vehicles", []string{"Red", "Orange"})
	is.NoErr(err)
	is.Equal(got, "https://api-v3.mbta.com/vehicles?filter%5Broute%5D=Red%2COrange")
}
