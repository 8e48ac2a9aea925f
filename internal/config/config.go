package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Routing modes for channel discovery.
const (
	RoutingDirect    = "direct"
	RoutingFederator = "federator"
)

// Config holds all tool settings, populated from environment variables.
type Config struct {
	Providers        []string
	Routing          string
	IncludeProviders []string
	ExcludeProviders []string
	FDSNTimeout      time.Duration
	FedcatalogURL    string
	AvailabilityURL  string
	UserAgent        string
	RequestInterval  time.Duration
	OutputDir        string

	// Travel time service configuration.
	TravelTimeURL       string
	TravelTimeCacheSize int

	LogLevel        string
	LogFormat       string
	MetricsAddr     string
	PushgatewayURL  string
	ShutdownTimeout time.Duration

	// Archive notifications, disabled when no brokers are set.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fdsnTimeout, err := parsePositiveDuration("FDSN_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	interval, err := time.ParseDuration(sharedcfg.EnvOrDefault("REQUEST_INTERVAL", "0s"))
	if err != nil || interval < 0 {
		return nil, errors.New("invalid REQUEST_INTERVAL")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		Providers:        parseList(sharedcfg.EnvOrDefault("FDSN_PROVIDERS", "IRIS")),
		Routing:          strings.ToLower(sharedcfg.EnvOrDefault("FDSN_ROUTING", RoutingDirect)),
		IncludeProviders: parseList(os.Getenv("FDSN_INCLUDE_PROVIDERS")),
		ExcludeProviders: parseList(os.Getenv("FDSN_EXCLUDE_PROVIDERS")),
		FDSNTimeout:      fdsnTimeout,
		FedcatalogURL:    sharedcfg.EnvOrDefault("FEDCATALOG_URL", "http://service.iris.edu/irisws/fedcatalog/1"),
		AvailabilityURL:  sharedcfg.EnvOrDefault("AVAILABILITY_URL", "https://service.iris.edu/fdsnws/availability/1"),
		UserAgent:        sharedcfg.EnvOrDefault("USER_AGENT", "seisdb-acquire"),
		RequestInterval:  interval,
		OutputDir:        sharedcfg.EnvOrDefault("OUTPUT_DIR", "."),

		TravelTimeURL:       sharedcfg.EnvOrDefault("TRAVELTIME_URL", "https://service.iris.edu/irisws/traveltime/1/query"),
		TravelTimeCacheSize: parseCacheSize(),

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "archived-waveforms"),
	}

	if cfg.Routing != RoutingDirect && cfg.Routing != RoutingFederator {
		return nil, fmt.Errorf("FDSN_ROUTING must be %q or %q", RoutingDirect, RoutingFederator)
	}
	if cfg.Routing == RoutingDirect && len(cfg.Providers) == 0 {
		return nil, errors.New("FDSN_PROVIDERS is required")
	}
	if cfg.Routing == RoutingFederator && cfg.FedcatalogURL == "" {
		return nil, errors.New("FEDCATALOG_URL is required for federator routing")
	}
	if cfg.TravelTimeURL == "" {
		return nil, errors.New("TRAVELTIME_URL is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// NotificationsEnabled reports whether archived waveforms are published to Kafka.
func (c *Config) NotificationsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseCacheSize() int {
	if s := os.Getenv("TRAVELTIME_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

// parseList splits a comma-separated value, dropping blanks.
func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
