package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL              = "http://127.0.0.1:25510/v2"
	DefaultWSURL                = "ws://127.0.0.1:25520/v1/events"
	DefaultAPITimeout           = 30 * time.Second
	DefaultMaxRetries           = 2
	DefaultRetryDelay           = 1 * time.Second
	DefaultRateBurst            = 1
	DefaultFanOutConcurrency    = 4
	DefaultNoDataStatus         = 472
	DefaultSecurityType         = "option"
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultPingTimeout          = 90 * time.Second
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 60 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultQueueSize            = 100000
	DefaultPlanTier             = "standard"
	DefaultMarketID             = "usa"
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultApplicationName      = "thetafeed"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultBatchSize            = 1000
	DefaultFlushInterval        = 1 * time.Second
	DefaultPollInterval         = 15 * time.Minute
	DefaultPollConcurrency      = 4
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
	DefaultLogMaxSizeMB         = 100
	DefaultLogMaxBackups        = 5
	DefaultLogMaxAgeDays        = 14
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/stats"
	DefaultPrometheusPath       = "/metrics"
)

func (c *GathererConfig) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryDelay == 0 {
		c.API.RetryDelay = DefaultRetryDelay
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = DefaultRateBurst
	}
	if c.API.FanOutConcurrency == 0 {
		c.API.FanOutConcurrency = DefaultFanOutConcurrency
	}
	if c.API.NoDataStatus == 0 {
		c.API.NoDataStatus = DefaultNoDataStatus
	}

	// Stream defaults
	if c.Stream.WSURL == "" {
		c.Stream.WSURL = DefaultWSURL
	}
	if c.Stream.SecurityType == "" {
		c.Stream.SecurityType = DefaultSecurityType
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.MaxReconnectAttempts == 0 {
		c.Stream.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Stream.QueueSize == 0 {
		c.Stream.QueueSize = DefaultQueueSize
	}

	// Plan and market defaults
	if c.Plan.Tier == "" {
		c.Plan.Tier = DefaultPlanTier
	}
	if c.Market.ID == "" {
		c.Market.ID = DefaultMarketID
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.PrometheusPath == "" {
		c.Metrics.PrometheusPath = DefaultPrometheusPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.ApplicationName == "" {
		db.ApplicationName = DefaultApplicationName
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
