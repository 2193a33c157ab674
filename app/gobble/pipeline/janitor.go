package pipeline

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

// janitorInterval is how often old shards are swept.
const janitorInterval = 24 * time.Hour

// RunJanitor periodically removes event shards older than retentionDays from
// the mode output directories under dataRoot. The uploader mirrors shards to
// the object store well before they age out, local copies exist only for
// operational inspection.
func RunJanitor(ctx context.Context, log *log.Logger, dataRoot string, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		sweep(log, dataRoot, time.Now().AddDate(0, 0, -retentionDays))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweep deletes event files last modified before cutoff and prunes the
// directories they leave empty.
func sweep(log *log.Logger, dataRoot string, cutoff time.Time) {
	removed := 0
	for _, prefix := range []string{"daily-rapid-data", "daily-cr-data", "daily-bus-data"} {
		root := filepath.Join(dataRoot, prefix)
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() || info.Name() != eventsFileName {
				return nil
			}
			if info.ModTime().Before(cutoff) {
				if err := os.Remove(path); err != nil {
					log.Printf("error removing expired shard %s: %v", path, err)
					return nil
				}
				removed++
				pruneEmptyParents(filepath.Dir(path), root)
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			log.Printf("error sweeping %s: %v", root, err)
		}
	}
	if removed > 0 {
		log.Printf("removed %d expired event shards", removed)
	}
}

// pruneEmptyParents removes empty directories from dir up to but excluding
// root.
func pruneEmptyParents(dir string, root string) {
	for dir != root {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
