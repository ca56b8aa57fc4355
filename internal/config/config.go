// Package config provides centralized configuration management for the ETL.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Pipeline  PipelineConfig
	Server    ServerConfig
	Logging   LoggingConfig
	Warehouse WarehouseConfig
	Metrics   MetricsConfig
	Schedule  ScheduleConfig
}

// PipelineConfig holds batch job settings.
type PipelineConfig struct {
	// InputDir holds the three source CSV files (default: ./data/raw)
	InputDir string `env:"PIPELINE_INPUT_DIR" envDefault:"./data/raw"`

	// OutputDir receives the exported artifacts and run report (default: ./data/processed)
	OutputDir string `env:"PIPELINE_OUTPUT_DIR" envDefault:"./data/processed"`

	// SourceTimezone is the IANA zone of naive event timestamps (default: Europe/Paris)
	SourceTimezone string `env:"PIPELINE_SOURCE_TIMEZONE" envDefault:"Europe/Paris"`

	// Workers bounds row-wise stage parallelism (default: 4)
	Workers int `env:"PIPELINE_WORKERS" envDefault:"4"`

	// ParquetEnabled turns the columnar encoder on; when off every export falls back to CSV
	ParquetEnabled bool `env:"PIPELINE_PARQUET_ENABLED" envDefault:"true"`

	// CSVCopy also writes the CSV sibling of every Parquet artifact (default: true)
	CSVCopy bool `env:"PIPELINE_CSV_COPY" envDefault:"true"`

	Events     RowBounds `envPrefix:"PIPELINE_EVENTS_"`
	Production RowBounds `envPrefix:"PIPELINE_PRODUCTION_"`
	Operators  RowBounds `envPrefix:"PIPELINE_OPERATORS_"`
}

// RowBounds is an inclusive row-count range enforced at extraction time.
// Defaults are applied per input in Load when both ends are zero.
type RowBounds struct {
	Min int `env:"MIN_ROWS"`
	Max int `env:"MAX_ROWS"`
}

// Contains reports whether n lies within the inclusive range.
func (b RowBounds) Contains(n int) bool {
	return n >= b.Min && n <= b.Max
}

// ServerConfig holds HTTP server settings for serve mode.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envDefault:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`

	// WriteTimeout is generous because POST /api/runs runs the pipeline inline (default: 10m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10m"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// RunWaitTime is how long a trigger waits for the running pipeline (default: 0, reject at once)
	RunWaitTime time.Duration `env:"SERVER_RUN_WAIT_TIME" envDefault:"0s"`

	// APIKeys guard POST /api/runs when non-empty (comma-separated)
	APIKeys []string `env:"SERVER_API_KEYS" envSeparator:","`

	// TrustedProxies are CIDRs whose X-Real-IP / X-Forwarded-For headers are honored
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES" envSeparator:","`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// WarehouseConfig holds the optional PostgreSQL load target.
type WarehouseConfig struct {
	// Enabled loads fact and summary tables after export (default: false)
	Enabled bool `env:"WAREHOUSE_ENABLED" envDefault:"false"`

	// URL is the PostgreSQL connection string; DATABASE_URL is accepted as well
	URL string `env:"WAREHOUSE_DATABASE_URL"`

	// MaxConns is the pool size (default: 4)
	MaxConns int `env:"WAREHOUSE_MAX_CONNS" envDefault:"4"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// PushgatewayURL pushes run metrics after each run when set
	PushgatewayURL string `env:"METRICS_PUSHGATEWAY_URL"`

	// Job is the Pushgateway job label (default: maintetl)
	Job string `env:"METRICS_JOB" envDefault:"maintetl"`

	// Instance is added as the "instance" grouping label when set, so several
	// plants can push to one gateway without replacing each other
	Instance string `env:"METRICS_INSTANCE"`
}

// ScheduleConfig holds the serve-mode periodic re-run.
type ScheduleConfig struct {
	// Interval between runs; 0 disables the schedule (default: 0)
	Interval time.Duration `env:"SCHEDULE_INTERVAL" envDefault:"0s"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
