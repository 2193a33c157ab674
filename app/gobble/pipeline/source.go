package pipeline

import (
	"context"
	"log"
)

// UpdateSource is a lazy stream of vehicle updates for a set of routes.
// Implementations reconnect internally; Next blocks until an update is
// available or ctx is done.
type UpdateSource interface {
	Next(ctx context.Context) (*VehicleUpdate, error)
	Close()
}

// sourceQueueDepth bounds the buffer between a source's network loop and the
// consuming worker.
const sourceQueueDepth = 256

// updateQueue is the bounded handoff used by both sources. When the consumer
// falls behind the newest update is dropped and counted.
type updateQueue struct {
	log     *log.Logger
	updates chan *VehicleUpdate
}

func newUpdateQueue(log *log.Logger) *updateQueue {
	return &updateQueue{
		log:     log,
		updates: make(chan *VehicleUpdate, sourceQueueDepth),
	}
}

// push enqueues update, dropping it when the queue is full.
func (q *updateQueue) push(update *VehicleUpdate) {
	select {
	case q.updates <- update:
	default:
		q.log.Printf("warning: update queue full, dropping update for trip %s", update.TripID)
		droppedUpdates.Inc()
	}
}

// next blocks until an update arrives or ctx is done.
func (q *updateQueue) next(ctx context.Context) (*VehicleUpdate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case update := <-q.updates:
		return update, nil
	}
}
