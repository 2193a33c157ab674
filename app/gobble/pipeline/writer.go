package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"github.com/transitmatters/gobble/business/data/agency"
	"github.com/transitmatters/gobble/foundation/servicedate"
)

// ShardWriter appends event rows to partitioned csv shards under the data
// root, writing the header when it creates a shard. Writes to the same shard
// serialise through a per-shard lock; the route partitioning normally keeps
// shards single-writer, the lock covers the exceptions.
type ShardWriter struct {
	dataRoot string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewShardWriter creates a writer rooted at dataRoot.
func NewShardWriter(dataRoot string) *ShardWriter {
	return &ShardWriter{
		dataRoot: dataRoot,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Append writes one event row to its shard.
func (w *ShardWriter) Append(mode agency.Mode, date servicedate.Date, event *Event) error {
	dir := filepath.Join(w.dataRoot, OutputDirPath(mode, event.RouteID, event.DirectionID, event.StopID, date))
	path := filepath.Join(dir, eventsFileName)

	lock := w.shardLock(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating shard directory %s: %w", dir, err)
	}

	_, statErr := os.Stat(path)
	newShard := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening shard %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	rows := []*Event{event}
	if newShard {
		err = gocsv.MarshalFile(&rows, file)
	} else {
		err = gocsv.MarshalWithoutHeaders(&rows, file)
	}
	if err != nil {
		return fmt.Errorf("appending to shard %s: %w", path, err)
	}
	return nil
}

func (w *ShardWriter) shardLock(path string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	lock, present := w.locks[path]
	if !present {
		lock = &sync.Mutex{}
		w.locks[path] = lock
	}
	return lock
}
