package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRedisHost    = "127.0.0.1"
	DefaultRedisPort    = 6379
	DefaultPollInterval = 100 * time.Millisecond
	DefaultDBHost       = "127.0.0.1"
	DefaultDBPort       = 5432
	DefaultDBName       = "mastodon_production"
	DefaultDBSSLMode    = "prefer"
	DefaultMaxConns     = 10
	DefaultMinConns     = 2
	DefaultServerPort   = 4000
	DefaultMetricsPort  = 9090
	DefaultMetricsPath  = "/metrics"
)

func (c *Config) applyDefaults() {
	// Redis defaults
	if c.Redis.Host == "" {
		c.Redis.Host = DefaultRedisHost
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = DefaultRedisPort
	}
	if c.Redis.PollInterval == 0 {
		c.Redis.PollInterval = Duration(DefaultPollInterval)
	}

	// Database defaults
	if c.Database.Host == "" {
		c.Database.Host = DefaultDBHost
	}
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.Name == "" {
		c.Database.Name = DefaultDBName
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
