// Package config loads moviectl settings from a YAML file with environment
// overrides.
//
// The file is taken from the --config flag, then $MOVIES_CONFIG. Without
// either, defaults apply. Environment variables win over the file:
//
//	MOVIES_DRIVER     memory | sqlite3 | pgx | bolt
//	MOVIES_DSN        data source for the driver
//	MOVIES_LOG_LEVEL  debug | info | warn | error
//	MOVIES_EVALUATOR  expr | cel | js
//	MOVIES_ACTOR      actor recorded on audit events
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
	DriverBolt     = "bolt"
)

var (
	drivers    = []string{DriverMemory, DriverSQLite, DriverPostgres, DriverBolt}
	evaluators = []string{"expr", "cel", "js"}
)

// Config holds moviectl settings.
type Config struct {
	Driver    string         `yaml:"driver"`
	DSN       string         `yaml:"dsn"`
	Table     string         `yaml:"table"`
	LogLevel  string         `yaml:"log_level"`
	Evaluator string         `yaml:"evaluator"`
	Actor     string         `yaml:"actor"`
	Tenant    string         `yaml:"tenant"`
	Activity  ActivityConfig `yaml:"activity"`
}

// ActivityConfig controls audit event output.
type ActivityConfig struct {
	Enabled bool   `yaml:"enabled"`
	Channel string `yaml:"channel"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Driver:    DriverSQLite,
		DSN:       "movies.db",
		Table:     "movies",
		LogLevel:  "warn",
		Evaluator: "expr",
	}
}

// Load reads path (or $MOVIES_CONFIG when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MOVIES_CONFIG")
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(c)
}

func (c *Config) applyEnv() {
	c.Driver = envOrDefault("MOVIES_DRIVER", c.Driver)
	c.DSN = envOrDefault("MOVIES_DSN", c.DSN)
	c.LogLevel = envOrDefault("MOVIES_LOG_LEVEL", c.LogLevel)
	c.Evaluator = envOrDefault("MOVIES_EVALUATOR", c.Evaluator)
	c.Actor = envOrDefault("MOVIES_ACTOR", c.Actor)
	c.Activity.Enabled = envBoolOrDefault("MOVIES_ACTIVITY", c.Activity.Enabled)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if !slices.Contains(drivers, c.Driver) {
		return fmt.Errorf("config: unknown driver %q (want one of %s)", c.Driver, strings.Join(drivers, ", "))
	}
	if c.Driver != DriverMemory && c.DSN == "" {
		return fmt.Errorf("config: driver %s needs a dsn", c.Driver)
	}
	if c.Table == "" {
		c.Table = "movies"
	}
	if !slices.Contains(evaluators, c.Evaluator) {
		return fmt.Errorf("config: unknown evaluator %q", c.Evaluator)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBoolOrDefault(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
