package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/transitmatters/gobble/business/data/agency"
)

// busChunkSize is the largest route list one bus worker consumes, matching
// the upstream filter length limit.
const busChunkSize = 10

// ChunkRoutes splits routes into slices of at most size.
func ChunkRoutes(routes []string, size int) [][]string {
	var chunks [][]string
	for len(routes) > size {
		chunks = append(chunks, routes[:size])
		routes = routes[size:]
	}
	if len(routes) > 0 {
		chunks = append(chunks, routes)
	}
	return chunks
}

// WorkerRoutes partitions the enabled modes into per-worker route lists:
// rapid and commuter rail each get a single worker, bus routes are split
// into chunks of busChunkSize. Route sets across workers are disjoint, which
// the trip-state layer relies on.
func WorkerRoutes(catalog *agency.Catalog, modes []agency.Mode) []WorkerAssignment {
	var assignments []WorkerAssignment
	for _, mode := range modes {
		routes := catalog.Routes(mode)
		if len(routes) == 0 {
			continue
		}
		if mode == agency.ModeBus {
			for i, chunk := range ChunkRoutes(routes, busChunkSize) {
				assignments = append(assignments, WorkerAssignment{
					Name:   fmt.Sprintf("bus-%d", i),
					Mode:   mode,
					Routes: chunk,
				})
			}
			continue
		}
		assignments = append(assignments, WorkerAssignment{
			Name:   string(mode),
			Mode:   mode,
			Routes: routes,
		})
	}
	return assignments
}

// WorkerAssignment names one worker and the routes it consumes.
type WorkerAssignment struct {
	Name   string
	Mode   agency.Mode
	Routes []string
}

// SourceFactory opens a feed source for one worker's route list.
type SourceFactory func(routes []string) (UpdateSource, error)

// ProcessorFactory builds one worker's processor. Each call must return a
// processor with its own trip state manager.
type ProcessorFactory func() *Processor

// RunWorkers starts one goroutine per assignment and blocks until ctx is
// done and every worker has drained its in-flight update. Every source is
// opened before any worker starts, so a failed open closes the ones already
// opened and no worker runs.
func RunWorkers(ctx context.Context, log *log.Logger, assignments []WorkerAssignment,
	newSource SourceFactory, newProcessor ProcessorFactory) error {

	sources := make([]UpdateSource, 0, len(assignments))
	for _, assignment := range assignments {
		source, err := newSource(assignment.Routes)
		if err != nil {
			for _, opened := range sources {
				opened.Close()
			}
			return fmt.Errorf("opening source for worker %s: %w", assignment.Name, err)
		}
		sources = append(sources, source)
	}

	var wg sync.WaitGroup
	for i, assignment := range assignments {
		wg.Add(1)
		go func(assignment WorkerAssignment, source UpdateSource) {
			defer wg.Done()
			defer source.Close()
			runWorker(ctx, log, assignment, source, newProcessor())
		}(assignment, sources[i])
	}
	wg.Wait()
	return nil
}

// runWorker funnels updates from source through processor until ctx is done.
func runWorker(ctx context.Context, log *log.Logger, assignment WorkerAssignment,
	source UpdateSource, processor *Processor) {

	log.Printf("worker %s consuming %d routes", assignment.Name, len(assignment.Routes))
	for {
		update, err := source.Next(ctx)
		if err != nil {
			log.Printf("worker %s exiting: %v", assignment.Name, err)
			return
		}
		processor.Process(update)
	}
}
