package main

import (
	"context"
	"errors"
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"

	"github.com/transitmatters/gobble/app/gobble/pipeline"
	"github.com/transitmatters/gobble/business/data/agency"
	"github.com/transitmatters/gobble/business/data/config"
	"github.com/transitmatters/gobble/business/data/gtfs"
	"github.com/transitmatters/gobble/foundation/servicedate"
)

var build = "develop"

// startupError marks failures in configuration or initial IO, which exit
// with code 1; anything else that escapes run is a fatal runtime error and
// exits with code 2.
type startupError struct {
	err error
}

func (e startupError) Error() string { return e.err.Error() }
func (e startupError) Unwrap() error { return e.err }

func main() {
	log := logger.New(os.Stdout, "GOBBLE : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		var startup startupError
		if errors.As(err, &startup) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args       conf.Args
		ConfigPath string `conf:"default:config.json"`
		DataRoot   string `conf:"default:data"`
		OpsPort    int    `conf:"default:0"`
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Record transit arrival and departure events from vehicle position feeds"
	const prefix = "GOBBLE"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return startupError{fmt.Errorf("parsing config: %w", err)}
	}

	// =========================================================================
	// App Starting

	log.Printf("main: Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return startupError{fmt.Errorf("generating config for output: %w", err)}
	}
	log.Printf("main: Config :\n%v\n", out)

	runtime, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return startupError{err}
	}

	catalog, err := agency.Load(runtime.Agency)
	if err != nil {
		return startupError{err}
	}
	location, err := catalog.Location()
	if err != nil {
		return startupError{fmt.Errorf("resolving agency time zone: %w", err)}
	}
	clock := servicedate.NewClock(location)

	modes := runtime.EnabledModes()
	routeFilter := make(map[string]bool)
	for _, mode := range modes {
		for _, routeID := range catalog.Routes(mode) {
			routeFilter[routeID] = true
		}
	}

	// =========================================================================
	// Schedule archive

	log.Println("main: Initializing gtfs schedule archive")

	registry := gtfs.NewRegistry(log, runtime.ArchiveRegistryURL(),
		filepath.Join(cfg.DataRoot, "gtfs_archives"), runtime.GTFS.RefreshIntervalDays)
	schedule := gtfs.NewManager(log, registry, clock, routeFilter)
	if err := schedule.UpdateIfNecessary(); err != nil {
		return startupError{fmt.Errorf("initial schedule load: %w", err)}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go schedule.Watch(ctx)
	go pipeline.RunOpsServer(ctx, log, clock, cfg.OpsPort)
	go pipeline.RunJanitor(ctx, log, cfg.DataRoot, runtime.FileRetentionDays)

	// =========================================================================
	// Workers

	publisher, err := pipeline.NewEventPublisher(log, runtime.EventsNATSURL)
	if err != nil {
		return startupError{fmt.Errorf("connecting event publisher: %w", err)}
	}
	defer publisher.Close()

	writer := pipeline.NewShardWriter(cfg.DataRoot)
	stateDir := filepath.Join(cfg.DataRoot, "trip_states")

	newSource := func(routes []string) (pipeline.UpdateSource, error) {
		if runtime.UseGTFSRT {
			routeSet := make(map[string]bool, len(routes))
			for _, routeID := range routes {
				routeSet[routeID] = true
			}
			return pipeline.NewGTFSRTSource(log, runtime.GTFSRT, routeSet, time.Now)
		}
		return pipeline.NewSSESource(log, catalog.VehiclesStreamURL, runtime.MBTA.V3APIKey, routes)
	}
	newProcessor := func() *pipeline.Processor {
		states := pipeline.NewTripsStateManager(log, stateDir, clock)
		return pipeline.NewProcessor(log, catalog, clock, schedule, states, writer, publisher)
	}

	assignments := pipeline.WorkerRoutes(catalog, modes)
	log.Printf("main: starting %d workers", len(assignments))
	if err := pipeline.RunWorkers(ctx, log, assignments, newSource, newProcessor); err != nil {
		return fmt.Errorf("running workers: %w", err)
	}
	return nil
}
