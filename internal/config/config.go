package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // DISPLAY_TIMEZONE must resolve on hosts without a zoneinfo database.

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

const (
	defaultUSGSEndpoint       = "https://earthquake.usgs.gov/fdsnws/event/1/query"
	defaultUSGSConnectTimeout = 15 * time.Second
	defaultUSGSReadTimeout    = 10 * time.Second
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	USGSEndpoint       string
	USGSConnectTimeout time.Duration
	USGSReadTimeout    time.Duration

	SettingsPath  string
	DisplayZone   *time.Location
	DisplayLocale language.Tag

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Feed publishing is off unless KAFKA_ENABLED=true.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is read first; variables
// already set take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	connectTimeout, err := parseDuration("USGS_CONNECT_TIMEOUT", defaultUSGSConnectTimeout)
	if err != nil {
		return nil, err
	}
	readTimeout, err := parseDuration("USGS_READ_TIMEOUT", defaultUSGSReadTimeout)
	if err != nil {
		return nil, err
	}

	zoneName := sharedcfg.EnvOrDefault("DISPLAY_TIMEZONE", "UTC")
	zone, err := time.LoadLocation(zoneName)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", zoneName, err)
	}

	localeName := sharedcfg.EnvOrDefault("DISPLAY_LOCALE", "en")
	locale, err := language.Parse(localeName)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_LOCALE %q: %w", localeName, err)
	}

	cfg := &Config{
		USGSEndpoint:       sharedcfg.EnvOrDefault("USGS_ENDPOINT", defaultUSGSEndpoint),
		USGSConnectTimeout: connectTimeout,
		USGSReadTimeout:    readTimeout,

		SettingsPath:  sharedcfg.EnvOrDefault("SETTINGS_PATH", "settings.yaml"),
		DisplayZone:   zone,
		DisplayLocale: locale,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled: strings.EqualFold(os.Getenv("KAFKA_ENABLED"), "true"),
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "earthquake-feed"),
	}

	if cfg.USGSEndpoint == "" {
		return nil, errors.New("USGS_ENDPOINT is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
		}
	}

	return cfg, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}
