package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/transitmatters/gobble/business/data/agency"
	"github.com/transitmatters/gobble/foundation/servicedate"
)

// eventsFileName is the shard file inside each partition directory.
const eventsFileName = "events.csv"

// OutputDirPath resolves the partition directory for an event, relative to
// the data root. Each mode keeps its historical layout: commuter rail splits
// by route and direction with underscores, bus with dashes, rapid transit by
// stop alone.
func OutputDirPath(mode agency.Mode, routeID string, directionID int, stopID string, date servicedate.Date) string {
	partition := fmt.Sprintf("Year=%d/Month=%d/Day=%d", date.Year, date.Month, date.Day)
	switch mode {
	case agency.ModeCR:
		return filepath.Join("daily-cr-data", fmt.Sprintf("%s_%d_%s", routeID, directionID, stopID), partition)
	case agency.ModeRapid:
		return filepath.Join("daily-rapid-data", stopID, partition)
	default:
		return filepath.Join("daily-bus-data", fmt.Sprintf("%s-%d-%s", routeID, directionID, stopID), partition)
	}
}
