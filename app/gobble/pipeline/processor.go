package pipeline

import (
	"log"

	"github.com/transitmatters/gobble/business/data/agency"
	"github.com/transitmatters/gobble/business/data/gtfs"
	"github.com/transitmatters/gobble/foundation/servicedate"
)

// Processor runs one update through state tracking, event detection, the
// stop filter, enrichment, and the shard writer. Each worker owns one
// processor; the trip state manager inside is not shared.
type Processor struct {
	log       *log.Logger
	catalog   *agency.Catalog
	clock     *servicedate.Clock
	schedule  *gtfs.Manager
	states    *TripsStateManager
	writer    *ShardWriter
	publisher *EventPublisher
}

// NewProcessor wires a processor for one worker.
func NewProcessor(log *log.Logger, catalog *agency.Catalog, clock *servicedate.Clock,
	schedule *gtfs.Manager, states *TripsStateManager, writer *ShardWriter,
	publisher *EventPublisher) *Processor {
	return &Processor{
		log:       log,
		catalog:   catalog,
		clock:     clock,
		schedule:  schedule,
		states:    states,
		writer:    writer,
		publisher: publisher,
	}
}

// Process advances the trip's state and emits an event row when one fires.
// Write and enrichment failures drop the row but never the state advance.
func (p *Processor) Process(update *VehicleUpdate) {
	updatesProcessed.Inc()

	// an update that does not name a stop cannot advance the trip
	if update.StopID == "" {
		return
	}

	routeState := p.states.Route(update.RouteID)
	prev, found := routeState.Trip(update.TripID)
	if found && !update.UpdatedAt.After(prev.UpdatedAt) {
		// replayed or identical-timestamp update
		return
	}
	if !found {
		// first observation: seed state from the update itself so no
		// event can fire on this step
		prev = TripState{
			StopID:              update.StopID,
			StopSequence:        update.StopSequence,
			EventType:           update.Status.EventHint(),
			UpdatedAt:           update.UpdatedAt,
			VehicleConsist:      update.Consist(),
			OccupancyStatus:     update.OccupancyStatusField(),
			OccupancyPercentage: update.OccupancyPercentageField(),
		}
	}

	result := detect(prev, update)

	routeState.Set(update.TripID, TripState{
		StopID:              update.StopID,
		StopSequence:        update.StopSequence,
		EventType:           result.storedEventType,
		UpdatedAt:           update.UpdatedAt,
		VehicleConsist:      update.Consist(),
		OccupancyStatus:     update.OccupancyStatusField(),
		OccupancyPercentage: update.OccupancyPercentageField(),
	})

	if !result.emit {
		return
	}
	if !p.catalog.RecordsStop(update.RouteID, result.stopID) {
		return
	}
	mode, known := p.catalog.Classify(update.RouteID)
	if !known {
		return
	}

	eventTime := update.UpdatedAt.In(p.clock.Location())
	serviceDate := p.clock.ServiceDate(eventTime)
	row := newEvent(update, result.eventType, result.stopID, serviceDate, eventTime)

	stopName := result.stopID
	if archive := p.schedule.Current(); archive != nil {
		stopName = archive.StopName(result.stopID)
		secondsAfterMidnight := int(eventTime.Sub(p.clock.Midnight(serviceDate)).Seconds())
		enriched := archive.Enrich(update.RouteID, update.DirectionID, result.stopID, secondsAfterMidnight)
		row.setEnrichmentFields(enriched.Headway, enriched.HeadwayKnown, enriched.TravelTime, enriched.TravelTimeKnown)
	}

	if err := p.writer.Append(mode, serviceDate, row); err != nil {
		p.log.Printf("error writing event for trip %s: %v", update.TripID, err)
		writeFailures.Inc()
		return
	}
	p.log.Printf("event: route=%s trip=%s %s stop=%s", update.RouteID, update.TripID, result.eventType, stopName)
	eventsWritten.WithLabelValues(string(mode), result.eventType).Inc()
	p.publisher.Publish(row)
}
