// Package config loads and validates the runtime configuration file. The
// daemon reads a single JSON document from disk, produced ahead of time by
// the deployment tooling; every validation failure here is a startup error.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/transitmatters/gobble/business/data/agency"
)

// Defaults applied when the config file omits optional keys.
const (
	DefaultPollingInterval   = 10
	DefaultFileRetentionDays = 180
	DefaultAPIKeyParamName   = "X-API-KEY"
)

// Config is the runtime configuration document.
type Config struct {
	Agency string   `json:"agency"`
	Modes  []string `json:"modes"`

	MBTA struct {
		V3APIKey string `json:"v3_api_key"`
	} `json:"mbta"`

	GTFS struct {
		RefreshIntervalDays int `json:"refresh_interval_days"`
	} `json:"gtfs"`

	UseGTFSRT bool       `json:"use_gtfs_rt"`
	GTFSRT    GTFSRTFeed `json:"gtfs_rt"`

	FileRetentionDays int `json:"file_retention_days"`

	// EventsNATSURL, when set, publishes every written event on a NATS
	// subject for downstream consumers.
	EventsNATSURL string `json:"events_nats_url"`

	// DatadogTraceEnabled is accepted for config compatibility; tracing is
	// handled outside this process.
	DatadogTraceEnabled bool `json:"DATADOG_TRACE_ENABLED"`

	GTFSArchivesPrefix   string `json:"GTFS_ARCHIVES_PREFIX"`
	GTFSArchivesFilename string `json:"GTFS_ARCHIVES_FILENAME"`
}

// GTFSRTFeed configures the polling GTFS-RT source variant.
type GTFSRTFeed struct {
	FeedURL         string `json:"feed_url"`
	APIKey          string `json:"api_key"`
	PollingInterval int    `json:"polling_interval"`
	APIKeyMethod    string `json:"api_key_method"`
	APIKeyParamName string `json:"api_key_param_name"`
}

// apiKeyMethods are the supported ways to attach the GTFS-RT api key.
var apiKeyMethods = map[string]bool{
	"header": true,
	"query":  true,
	"bearer": true,
	"none":   true,
}

// Load reads, defaults, and validates the JSON config at path.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config file %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Modes) == 0 {
		c.Modes = []string{string(agency.ModeRapid), string(agency.ModeCR), string(agency.ModeBus)}
	}
	if c.GTFSRT.PollingInterval == 0 {
		c.GTFSRT.PollingInterval = DefaultPollingInterval
	}
	if c.GTFSRT.APIKeyMethod == "" {
		c.GTFSRT.APIKeyMethod = "header"
	}
	if c.GTFSRT.APIKeyParamName == "" {
		c.GTFSRT.APIKeyParamName = DefaultAPIKeyParamName
	}
	if c.FileRetentionDays == 0 {
		c.FileRetentionDays = DefaultFileRetentionDays
	}
}

func (c *Config) validate() error {
	catalog, err := agency.Load(c.Agency)
	if err != nil {
		return err
	}

	for _, mode := range c.Modes {
		switch agency.Mode(mode) {
		case agency.ModeBus, agency.ModeCR, agency.ModeRapid:
		default:
			return fmt.Errorf("unknown mode %q in modes list", mode)
		}
	}

	if c.GTFSArchivesPrefix == "" || c.GTFSArchivesFilename == "" {
		return fmt.Errorf("GTFS_ARCHIVES_PREFIX and GTFS_ARCHIVES_FILENAME are required")
	}
	if _, err := url.ParseRequestURI(c.GTFSArchivesPrefix); err != nil {
		return fmt.Errorf("GTFS_ARCHIVES_PREFIX is not a valid url: %w", err)
	}
	if c.GTFS.RefreshIntervalDays <= 0 {
		return fmt.Errorf("gtfs.refresh_interval_days must be positive")
	}

	if c.UseGTFSRT {
		if c.GTFSRT.FeedURL == "" {
			return fmt.Errorf("gtfs_rt.feed_url is required when use_gtfs_rt is set")
		}
		if _, err := url.ParseRequestURI(c.GTFSRT.FeedURL); err != nil {
			return fmt.Errorf("gtfs_rt.feed_url is not a valid url: %w", err)
		}
		if !apiKeyMethods[c.GTFSRT.APIKeyMethod] {
			return fmt.Errorf("gtfs_rt.api_key_method must be one of header, query, bearer, none")
		}
		if c.GTFSRT.APIKeyMethod != "none" && c.GTFSRT.APIKey == "" {
			return fmt.Errorf("gtfs_rt.api_key is required for api_key_method %q", c.GTFSRT.APIKeyMethod)
		}
	} else {
		if catalog.VehiclesStreamURL == "" {
			return fmt.Errorf("agency %q has no vehicle stream, set use_gtfs_rt", c.Agency)
		}
		if c.MBTA.V3APIKey == "" && c.Agency == "mbta" {
			return fmt.Errorf("mbta.v3_api_key is required for the streaming source")
		}
	}

	return nil
}

// ArchiveRegistryURL joins the archive prefix and registry filename.
func (c *Config) ArchiveRegistryURL() string {
	base, err := url.Parse(c.GTFSArchivesPrefix)
	if err != nil {
		return c.GTFSArchivesPrefix + c.GTFSArchivesFilename
	}
	ref, err := url.Parse(c.GTFSArchivesFilename)
	if err != nil {
		return c.GTFSArchivesPrefix + c.GTFSArchivesFilename
	}
	return base.ResolveReference(ref).String()
}

// EnabledModes returns the configured modes in catalog order.
func (c *Config) EnabledModes() []agency.Mode {
	enabled := make(map[agency.Mode]bool, len(c.Modes))
	for _, mode := range c.Modes {
		enabled[agency.Mode(mode)] = true
	}
	var modes []agency.Mode
	for _, mode := range agency.Modes {
		if enabled[mode] {
			modes = append(modes, mode)
		}
	}
	return modes
}
