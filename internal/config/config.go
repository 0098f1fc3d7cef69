package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/water-globe-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

// Default data source settings for the county water-use dataset.
const (
	DefaultCartoBaseURL         = "https://wtsang01.carto.com/api/v2/sql"
	DefaultCartoCountiesTable   = "gaz_counties_national_geo"
	DefaultCartoPopulationTable = "usa_population_final_cenus"
)

// Config holds all service settings, populated from an optional YAML file and
// environment variables. Environment variables win over the file.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// SQL API source.
	CartoBaseURL         string
	CartoAPIKey          string
	CartoCountiesTable   string
	CartoPopulationTable string
	CartoTimeout         time.Duration
	CartoRowLimit        int

	RefreshInterval time.Duration
	SeriesName      string
	HeightScale     float64

	// Renderer clock.
	ClockStart      time.Time
	ClockStop       time.Time
	ClockMultiplier float64

	SnapshotDB string

	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaEntityTopic string
}

// File is the YAML overlay. Zero values leave the default in place.
type File struct {
	Source struct {
		BaseURL         string `yaml:"base_url"`
		APIKey          string `yaml:"api_key"`
		CountiesTable   string `yaml:"counties_table"`
		PopulationTable string `yaml:"population_table"`
		Timeout         string `yaml:"timeout"`
		RowLimit        int    `yaml:"row_limit"`
	} `yaml:"source"`
	Clock struct {
		Start      string  `yaml:"start"`
		Stop       string  `yaml:"stop"`
		Multiplier float64 `yaml:"multiplier"`
	} `yaml:"clock"`
	SeriesName      string  `yaml:"series_name"`
	HeightScale     float64 `yaml:"height_scale"`
	RefreshInterval string  `yaml:"refresh_interval"`
	SnapshotDB      string  `yaml:"snapshot_db"`
}

// Load reads configuration from CONFIG_FILE (if set) and environment
// variables, applying defaults where unset.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML overlay path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	var f File
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cartoTimeout, err := parseDuration("CARTO_TIMEOUT", or(f.Source.Timeout, "30s"), false)
	if err != nil {
		return nil, err
	}
	refresh, err := parseDuration("REFRESH_INTERVAL", or(f.RefreshInterval, "0s"), true)
	if err != nil {
		return nil, err
	}
	rowLimit, err := parseInt("CARTO_ROW_LIMIT", f.Source.RowLimit)
	if err != nil {
		return nil, err
	}
	heightScale, err := parseFloat("HEIGHT_SCALE", orFloat(f.HeightScale, 1e5))
	if err != nil {
		return nil, err
	}
	multiplier, err := parseFloat("CLOCK_MULTIPLIER", orFloat(f.Clock.Multiplier, 15768000))
	if err != nil {
		return nil, err
	}
	clockStart, err := parseTime("CLOCK_START", or(f.Clock.Start, "2000-01-01"))
	if err != nil {
		return nil, err
	}
	clockStop, err := parseTime("CLOCK_STOP", or(f.Clock.Stop, "2050-01-01"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CartoBaseURL:         sharedcfg.EnvOrDefault("CARTO_BASE_URL", or(f.Source.BaseURL, DefaultCartoBaseURL)),
		CartoAPIKey:          sharedcfg.EnvOrDefault("CARTO_API_KEY", f.Source.APIKey),
		CartoCountiesTable:   sharedcfg.EnvOrDefault("CARTO_COUNTIES_TABLE", or(f.Source.CountiesTable, DefaultCartoCountiesTable)),
		CartoPopulationTable: sharedcfg.EnvOrDefault("CARTO_POPULATION_TABLE", or(f.Source.PopulationTable, DefaultCartoPopulationTable)),
		CartoTimeout:         cartoTimeout,
		CartoRowLimit:        rowLimit,

		RefreshInterval: refresh,
		SeriesName:      sharedcfg.EnvOrDefault("SERIES_NAME", or(f.SeriesName, "WaterUse")),
		HeightScale:     heightScale,

		ClockStart:      clockStart,
		ClockStop:       clockStop,
		ClockMultiplier: multiplier,

		SnapshotDB: sharedcfg.EnvOrDefault("SNAPSHOT_DB", f.SnapshotDB),

		KafkaEnabled:     os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEntityTopic: sharedcfg.EnvOrDefault("KAFKA_ENTITY_TOPIC", "water-globe-entities"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ClockSettings returns the renderer clock described by the configuration.
func (c *Config) ClockSettings() domain.ClockSettings {
	cs := domain.DefaultClockSettings()
	cs.Start = c.ClockStart
	cs.Current = c.ClockStart
	cs.Stop = c.ClockStop
	cs.Multiplier = c.ClockMultiplier
	return cs
}

func (c *Config) validate() error {
	if c.CartoBaseURL == "" {
		return errors.New("CARTO_BASE_URL is required")
	}
	if c.CartoCountiesTable == "" || c.CartoPopulationTable == "" {
		return errors.New("CARTO_COUNTIES_TABLE and CARTO_POPULATION_TABLE are required")
	}
	if c.CartoRowLimit < 0 {
		return errors.New("invalid CARTO_ROW_LIMIT: must not be negative")
	}
	if c.SeriesName == "" {
		return errors.New("SERIES_NAME is required")
	}
	if !(c.HeightScale > 0) {
		return errors.New("invalid HEIGHT_SCALE: must be greater than 0")
	}
	if !(c.ClockMultiplier > 0) {
		return errors.New("invalid CLOCK_MULTIPLIER: must be greater than 0")
	}
	if !c.ClockStop.After(c.ClockStart) {
		return errors.New("CLOCK_STOP must be after CLOCK_START")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaEntityTopic == "" {
			return errors.New("KAFKA_ENTITY_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

// parseTime accepts a calendar date or an RFC 3339 timestamp.
func parseTime(key, def string) (time.Time, error) {
	s := strings.TrimSpace(sharedcfg.EnvOrDefault(key, def))
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %q", key, s)
	}
	return t.UTC(), nil
}
