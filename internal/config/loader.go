package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // zone database for PIPELINE_SOURCE_TIMEZONE on minimal hosts

	"github.com/caarlos0/env/v11"
)

// Default extraction bounds, one per input file.
var (
	DefaultEventBounds      = RowBounds{Min: 90, Max: 100}
	DefaultProductionBounds = RowBounds{Min: 2000, Max: 2100}
	DefaultOperatorBounds   = RowBounds{Min: 18, Max: 22}
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if cfg.Warehouse.URL == "" {
		cfg.Warehouse.URL = os.Getenv("DATABASE_URL")
	}
	cfg.Pipeline.Events = withDefault(cfg.Pipeline.Events, DefaultEventBounds)
	cfg.Pipeline.Production = withDefault(cfg.Pipeline.Production, DefaultProductionBounds)
	cfg.Pipeline.Operators = withDefault(cfg.Pipeline.Operators, DefaultOperatorBounds)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// withDefault fills whichever end of b is unset from def.
func withDefault(b, def RowBounds) RowBounds {
	if b.Min == 0 && b.Max == 0 {
		return def
	}
	if b.Max == 0 {
		b.Max = def.Max
	}
	return b
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Pipeline validation
	if strings.TrimSpace(c.Pipeline.InputDir) == "" {
		errs = append(errs, "PIPELINE_INPUT_DIR is required")
	}
	if strings.TrimSpace(c.Pipeline.OutputDir) == "" {
		errs = append(errs, "PIPELINE_OUTPUT_DIR is required")
	}
	if _, err := time.LoadLocation(c.Pipeline.SourceTimezone); err != nil {
		errs = append(errs, fmt.Sprintf("PIPELINE_SOURCE_TIMEZONE (%q) is not a known zone", c.Pipeline.SourceTimezone))
	}
	if c.Pipeline.Workers <= 0 {
		errs = append(errs, "PIPELINE_WORKERS must be positive")
	}
	bounds := []struct {
		name string
		b    RowBounds
	}{
		{"PIPELINE_EVENTS", c.Pipeline.Events},
		{"PIPELINE_PRODUCTION", c.Pipeline.Production},
		{"PIPELINE_OPERATORS", c.Pipeline.Operators},
	}
	for _, rb := range bounds {
		if rb.b.Min < 0 || rb.b.Max < rb.b.Min {
			errs = append(errs, fmt.Sprintf("%s_MIN_ROWS (%d) and %s_MAX_ROWS (%d) must form a range",
				rb.name, rb.b.Min, rb.name, rb.b.Max))
		}
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RunWaitTime < 0 {
		errs = append(errs, "SERVER_RUN_WAIT_TIME must be non-negative")
	}

	// Warehouse validation
	if c.Warehouse.Enabled && c.Warehouse.URL == "" {
		errs = append(errs, "WAREHOUSE_ENABLED is true but neither WAREHOUSE_DATABASE_URL nor DATABASE_URL is set")
	}
	if c.Warehouse.MaxConns <= 0 {
		errs = append(errs, "WAREHOUSE_MAX_CONNS must be positive")
	}

	// Schedule validation
	if c.Schedule.Interval < 0 {
		errs = append(errs, "SCHEDULE_INTERVAL must be non-negative")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The warehouse URL is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Pipeline: {InputDir: %q, OutputDir: %q, Timezone: %q, Workers: %d}, ",
		c.Pipeline.InputDir, c.Pipeline.OutputDir, c.Pipeline.SourceTimezone, c.Pipeline.Workers))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d, APIKeys: %d}, ", c.Server.Host, c.Server.Port, len(c.Server.APIKeys)))
	b.WriteString(fmt.Sprintf("Warehouse: {Enabled: %v, URL: [MASKED]}, ", c.Warehouse.Enabled))
	b.WriteString(fmt.Sprintf("Metrics: {Push: %v, Job: %q, Instance: %q}, ", c.Metrics.PushgatewayURL != "", c.Metrics.Job, c.Metrics.Instance))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
