package gtfs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/transitmatters/gobble/foundation/servicedate"
)

// watchInterval is how often the manager checks whether the service date has
// rolled over.
const watchInterval = 60 * time.Second

// Manager owns the process-wide current ScheduleArchive. Workers read the
// archive through Current while a watcher goroutine swaps in a fresh archive
// when the service date rolls over. Archives are immutable after load, so
// readers hold no lock beyond taking the reference.
type Manager struct {
	log         *log.Logger
	registry    *Registry
	clock       *servicedate.Clock
	routeFilter map[string]bool

	mu      sync.RWMutex
	current *ScheduleArchive
}

// NewManager builds a Manager loading archives through registry, scoped to
// the routes in routeFilter.
func NewManager(log *log.Logger, registry *Registry, clock *servicedate.Clock, routeFilter map[string]bool) *Manager {
	return &Manager{
		log:         log,
		registry:    registry,
		clock:       clock,
		routeFilter: routeFilter,
	}
}

// Current returns the archive for the current service date, or nil before
// the first successful load.
func (m *Manager) Current() *ScheduleArchive {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// UpdateIfNecessary loads and swaps in a new archive when none is loaded yet
// or the service date has changed. A load failure leaves the previous
// archive in place.
func (m *Manager) UpdateIfNecessary() error {
	date := m.clock.Current()

	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()
	if current != nil && current.ServiceDate == date {
		return nil
	}

	dir, err := m.registry.EnsureArchive(date)
	if err != nil {
		return fmt.Errorf("resolving archive for %s: %w", date, err)
	}
	archive, err := LoadArchive(dir, date, m.routeFilter)
	if err != nil {
		return fmt.Errorf("loading archive for %s: %w", date, err)
	}
	m.log.Printf("loaded gtfs archive for %s, %d routes active", date, archive.RouteCount())

	m.mu.Lock()
	m.current = archive
	m.mu.Unlock()
	return nil
}

// Watch refreshes the archive on service date rollovers until ctx is done.
// The initial load must have happened before Watch starts; rollover failures
// are logged and retried on the next tick.
func (m *Manager) Watch(ctx context.Context) {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.UpdateIfNecessary(); err != nil {
				m.log.Printf("gtfs archive refresh failed: %v", err)
			}
		}
	}
}
