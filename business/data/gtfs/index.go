package gtfs

import (
	"sort"
)

// scheduleEntry is one scheduled arrival at a (direction, stop) pair,
// carrying the metrics enrichment attaches to live events. A headway of -1
// marks the first arrival of the day at the pair, which has no predecessor.
type scheduleEntry struct {
	arrival    ScheduleSeconds
	tripID     string
	headway    int
	travelTime int
}

// directionStop keys the per-route index. Route is implicit, the index is
// built per route.
type directionStop struct {
	directionID int
	stopID      string
}

// routeIndex holds, per (direction, stop), the day's scheduled arrivals
// sorted by arrival time.
type routeIndex struct {
	entries map[directionStop][]scheduleEntry
}

// Enrichment carries the schedule metrics matched to a live event. Unknown
// metrics stay false and render as empty csv fields.
type Enrichment struct {
	Headway      int
	HeadwayKnown bool

	TravelTime      int
	TravelTimeKnown bool
	ScheduledTripID string
}

// Enrich matches a live event at secondsAfterMidnight on (routeID,
// directionID, stopID) against the day's schedule.
//
// The headway comes from the latest scheduled arrival at or before the event
// time. The travel time comes from the scheduled trip whose arrival is
// nearest the event time in either direction, ties resolved toward the
// earlier arrival; that trip's id is reported as ScheduledTripID.
func (a *ScheduleArchive) Enrich(routeID string, directionID int, stopID string, secondsAfterMidnight int) Enrichment {
	var enriched Enrichment

	index := a.indexFor(routeID)
	entries := index.entries[directionStop{directionID: directionID, stopID: stopID}]
	if len(entries) == 0 {
		return enriched
	}

	// upper is the index of the first arrival strictly after the event.
	upper := sort.Search(len(entries), func(i int) bool {
		return int(entries[i].arrival) > secondsAfterMidnight
	})

	if upper > 0 {
		predecessor := entries[upper-1]
		if predecessor.headway >= 0 {
			enriched.Headway = predecessor.headway
			enriched.HeadwayKnown = true
		}
	}

	nearest := nearestEntry(entries, upper, secondsAfterMidnight)
	enriched.TravelTime = nearest.travelTime
	enriched.TravelTimeKnown = true
	enriched.ScheduledTripID = nearest.tripID
	return enriched
}

// nearestEntry picks the entry closest in time to the event from the two
// candidates bracketing it.
func nearestEntry(entries []scheduleEntry, upper int, secondsAfterMidnight int) scheduleEntry {
	if upper == 0 {
		return entries[0]
	}
	if upper == len(entries) {
		return entries[upper-1]
	}
	before := entries[upper-1]
	after := entries[upper]
	if secondsAfterMidnight-int(before.arrival) <= int(after.arrival)-secondsAfterMidnight {
		return before
	}
	return after
}

// buildRouteIndex joins one route's stop times with trip directions, sorts
// each (direction, stop) group by arrival, and precomputes headways and
// per-trip travel times.
func buildRouteIndex(stopTimes []StopTime, tripDirection map[string]int) *routeIndex {
	index := &routeIndex{entries: make(map[directionStop][]scheduleEntry)}

	tripStart := make(map[string]ScheduleSeconds)
	for _, stopTime := range stopTimes {
		start, present := tripStart[stopTime.TripID]
		if !present || stopTime.ArrivalSeconds < start {
			tripStart[stopTime.TripID] = stopTime.ArrivalSeconds
		}
	}

	for _, stopTime := range stopTimes {
		direction, present := tripDirection[stopTime.TripID]
		if !present {
			continue
		}
		key := directionStop{directionID: direction, stopID: stopTime.StopID}
		index.entries[key] = append(index.entries[key], scheduleEntry{
			arrival:    stopTime.ArrivalSeconds,
			tripID:     stopTime.TripID,
			travelTime: int(stopTime.ArrivalSeconds - tripStart[stopTime.TripID]),
		})
	}

	for key, entries := range index.entries {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].arrival < entries[j].arrival
		})
		for i := range entries {
			if i == 0 {
				entries[i].headway = -1
				continue
			}
			entries[i].headway = int(entries[i].arrival - entries[i-1].arrival)
		}
		index.entries[key] = entries
	}
	return index
}
