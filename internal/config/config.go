package config

import "time"

// GathererConfig is the root configuration for a gatherer instance.
type GathererConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Stream   StreamConfig   `yaml:"stream"`
	Plan     PlanConfig     `yaml:"plan"`
	Market   MarketConfig   `yaml:"market"`
	Database DatabaseConfig `yaml:"database"`
	Writers  WritersConfig  `yaml:"writers"`
	Poller   PollerConfig   `yaml:"poller"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// InstanceConfig identifies this gatherer.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds vendor REST settings.
type APIConfig struct {
	RestURL           string        `yaml:"rest_url"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RateLimit         float64       `yaml:"rate_limit"` // Requests per second, 0 = unlimited
	RateBurst         int           `yaml:"rate_burst"`
	FanOutConcurrency int           `yaml:"fan_out_concurrency"`
	NoDataStatus      int           `yaml:"no_data_status"`
}

// StreamConfig holds stream manager settings.
type StreamConfig struct {
	WSURL                string        `yaml:"ws_url"`
	Contracts            []string      `yaml:"contracts"` // Tickers streamed at startup
	SecurityType         string        `yaml:"security_type"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	QueueSize            int           `yaml:"queue_size"`
}

// PlanConfig selects the subscription tier.
type PlanConfig struct {
	Tier string `yaml:"tier"`
}

// MarketConfig identifies the market contracts trade on.
type MarketConfig struct {
	ID  string `yaml:"id"`
	MIC string `yaml:"mic"` // Exchange calendar override
}

// DatabaseConfig holds the TimescaleDB connection for time-series data.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Name            string `yaml:"name"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"`
	ApplicationName string `yaml:"application_name"`
	MaxConns        int    `yaml:"max_conns"`
	MinConns        int    `yaml:"min_conns"`
}

// WritersConfig holds batch writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// PollerConfig holds option chain poller settings.
type PollerConfig struct {
	Roots       []string      `yaml:"roots"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // Optional rotated log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig holds the health/stats endpoint settings.
type MetricsConfig struct {
	Port           int    `yaml:"port"`
	Path           string `yaml:"path"`            // JSON stats snapshot
	PrometheusPath string `yaml:"prometheus_path"` // Prometheus scrape endpoint
}
