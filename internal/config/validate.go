package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rickgao/thetafeed/internal/plan"
)

var (
	securityTypes = []string{"option", "stock", "index", "index_option"}
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"text", "json"}
)

// Validate checks that all required fields are set and values are valid.
func (c *GathererConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.RestURL == "" {
		return errors.New("api.rest_url is required")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.RateLimit < 0 {
		return errors.New("api.rate_limit must be >= 0")
	}
	if c.API.RateBurst < 1 {
		return errors.New("api.rate_burst must be >= 1")
	}
	if c.API.FanOutConcurrency < 1 {
		return errors.New("api.fan_out_concurrency must be >= 1")
	}

	if c.Stream.WSURL == "" {
		return errors.New("stream.ws_url is required")
	}
	if !slices.Contains(securityTypes, c.Stream.SecurityType) {
		return fmt.Errorf("stream.security_type must be one of %s, got %q",
			strings.Join(securityTypes, ", "), c.Stream.SecurityType)
	}
	if c.Stream.ReconnectMaxDelay < c.Stream.ReconnectBaseDelay {
		return errors.New("stream.reconnect_max_delay cannot be less than stream.reconnect_base_delay")
	}
	if c.Stream.MaxReconnectAttempts < 0 {
		return errors.New("stream.max_reconnect_attempts must be >= 0")
	}
	if c.Stream.QueueSize < 1 {
		return errors.New("stream.queue_size must be >= 1")
	}

	if _, err := plan.Lookup(c.Plan.Tier); err != nil {
		return fmt.Errorf("plan.tier must be one of %s, got %q",
			strings.Join(plan.Names(), ", "), c.Plan.Tier)
	}

	if err := c.Database.Timescale.validate("database.timescale"); err != nil {
		return err
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}

	if c.Poller.Concurrency < 1 {
		return errors.New("poller.concurrency must be >= 1")
	}

	if !slices.Contains(logLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("logging.level must be one of %s, got %q",
			strings.Join(logLevels, ", "), c.Logging.Level)
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	for _, ep := range []struct{ name, path string }{
		{"metrics.path", c.Metrics.Path},
		{"metrics.prometheus_path", c.Metrics.PrometheusPath},
	} {
		name, path := ep.name, ep.path
		if !strings.HasPrefix(path, "/") || path == "/health" {
			return fmt.Errorf("%s must be an absolute path other than /health, got %q", name, path)
		}
	}
	if c.Metrics.Path == c.Metrics.PrometheusPath {
		return fmt.Errorf("metrics.path and metrics.prometheus_path must differ, both %q", c.Metrics.Path)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
