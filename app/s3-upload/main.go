package main

import (
	"context"
	"fmt"
	logger "log"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ardanlabs/conf"

	"github.com/transitmatters/gobble/app/s3-upload/uploader"
	"github.com/transitmatters/gobble/business/data/agency"
	"github.com/transitmatters/gobble/business/data/config"
	"github.com/transitmatters/gobble/foundation/servicedate"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "S3_UPLOAD : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args       conf.Args
		ConfigPath string `conf:"default:config.json"`
		DataRoot   string `conf:"default:data"`
		Bucket     string `conf:"default:tm-gobble-events"`
		// StartDate backfills from this date (MM-DD-YYYY) up to today.
		StartDate string `conf:"default:"`
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Mirror local event shards to the object store"
	const prefix = "S3_UPLOAD"
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
		return fmt.Errorf("parsing config: %w", err)
	}

	runtime, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}
	catalog, err := agency.Load(runtime.Agency)
	if err != nil {
		return err
	}
	location, err := catalog.Location()
	if err != nil {
		return fmt.Errorf("resolving agency time zone: %w", err)
	}
	clock := servicedate.NewClock(location)

	today := clock.Current()
	start := today
	if cfg.StartDate != "" {
		parsed, err := time.Parse("01-02-2006", cfg.StartDate)
		if err != nil {
			return fmt.Errorf("parsing start date %q (want MM-DD-YYYY): %w", cfg.StartDate, err)
		}
		start = servicedate.FromTime(parsed)
		if today.Before(start) {
			return fmt.Errorf("start date %s is in the future", start)
		}
	}

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading aws config: %w", err)
	}
	store := uploader.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Bucket)

	total := 0
	for date := start; !today.Before(date); date = date.AddDays(1) {
		uploaded, err := uploader.MirrorDate(ctx, log, store, cfg.DataRoot, date)
		total += uploaded
		if err != nil {
			return fmt.Errorf("mirroring %s: %w", date, err)
		}
		log.Printf("mirrored %d shards for %s", uploaded, date)
	}
	log.Printf("done, %d shards mirrored", total)
	return nil
}
