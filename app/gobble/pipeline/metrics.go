package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exposed on the ops endpoint. Failures surface here and in the
// logs; nothing in the pipeline escalates them to a crash.
var (
	eventsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gobble",
		Name:      "events_written_total",
		Help:      "Event rows appended to output shards.",
	}, []string{"mode", "event_type"})

	updatesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gobble",
		Name:      "updates_processed_total",
		Help:      "Vehicle updates consumed from feed sources.",
	})

	droppedUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gobble",
		Name:      "updates_dropped_total",
		Help:      "Updates dropped because a source queue overflowed.",
	})

	parseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gobble",
		Name:      "parse_failures_total",
		Help:      "Feed payloads that could not be decoded.",
	})

	writeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gobble",
		Name:      "write_failures_total",
		Help:      "Event rows lost to shard write errors.",
	})
)
