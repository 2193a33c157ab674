package pipeline

// deduper suppresses polled updates whose meaningful fields are unchanged
// since the last emission for the same trip. The polling source owns one
// deduper; the streaming source needs none because the upstream debounces.
type deduper struct {
	lastByTrip map[string]*VehicleUpdate
}

func newDeduper() *deduper {
	return &deduper{lastByTrip: make(map[string]*VehicleUpdate)}
}

// shouldEmit reports whether update differs from the trip's last emitted
// update, caching it when it does.
func (d *deduper) shouldEmit(update *VehicleUpdate) bool {
	last, present := d.lastByTrip[update.TripID]
	if present && sameMeaningfulFields(last, update) {
		return false
	}
	d.lastByTrip[update.TripID] = update
	return true
}

// evictMissing drops cached trips absent from the current poll, so a trip
// that disappears and returns is emitted again.
func (d *deduper) evictMissing(seen map[string]bool) {
	for tripID := range d.lastByTrip {
		if !seen[tripID] {
			delete(d.lastByTrip, tripID)
		}
	}
}

// sameMeaningfulFields compares the fields whose change warrants an
// emission, cheapest first.
func sameMeaningfulFields(a, b *VehicleUpdate) bool {
	if a.StopID != b.StopID {
		return false
	}
	if a.Status != b.Status {
		return false
	}
	if a.StopSequence != b.StopSequence {
		return false
	}
	if a.OccupancyStatus != b.OccupancyStatus {
		return false
	}
	return sameCarriages(a.Carriages, b.Carriages)
}
