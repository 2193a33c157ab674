package pipeline

// detection is the outcome of comparing an update against the trip's stored
// state.
type detection struct {
	emit bool
	// eventType and stopID describe the emitted row, not the stored state.
	eventType string
	stopID    string
	// storedEventType is what the advanced trip state records.
	storedEventType string
}

// detect applies the event rules to (prev, update).
//
// A departure fires when the vehicle has both changed stop and advanced its
// stop sequence; the emitted row carries the stop being left, prev.StopID.
// An arrival fires when a vehicle whose last event was a departure reports
// STOPPED_AT. When both fire in one step, the vehicle skipped straight from
// departing one stop to being stopped at the next, a single row is emitted:
// it keeps the departure's stop attribution (prev.StopID) and the arrival's
// event type, since the vehicle's current status is stopped.
func detect(prev TripState, update *VehicleUpdate) detection {
	isDeparture := prev.StopID != update.StopID && prev.StopSequence < update.StopSequence
	isArrival := update.Status == StatusStoppedAt && prev.EventType == EventTypeDeparture

	switch {
	case isDeparture && isArrival:
		return detection{
			emit:            true,
			eventType:       update.Status.EventHint(),
			stopID:          prev.StopID,
			storedEventType: update.Status.EventHint(),
		}
	case isDeparture:
		return detection{
			emit:            true,
			eventType:       EventTypeDeparture,
			stopID:          prev.StopID,
			storedEventType: EventTypeDeparture,
		}
	case isArrival:
		return detection{
			emit:            true,
			eventType:       EventTypeArrival,
			stopID:          update.StopID,
			storedEventType: EventTypeArrival,
		}
	}
	return detection{storedEventType: update.Status.EventHint()}
}
