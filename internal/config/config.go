package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML values like "100ms" or "1s"; a bare integer is
// taken as milliseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var ms int64
	if err := value.Decode(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string or integer milliseconds: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the root configuration for a flodgatt instance.
type Config struct {
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// RedisConfig holds the pub/sub backend settings.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`

	// User and DB are accepted for config-file compatibility but have no
	// effect: pub/sub connections support neither ACL users nor SELECT
	// here. A warning is logged at startup when either is set.
	User string `yaml:"user"`
	DB   string `yaml:"db"`

	// Namespace is an optional prefix applied to every channel name,
	// isolating deployments that share one Redis.
	Namespace string `yaml:"namespace"`

	// PollInterval is how often the scheduler polls for new bytes.
	PollInterval Duration `yaml:"poll_interval"`
}

// DatabaseConfig holds the Mastodon Postgres connection, used for
// access-token authentication and tag lookups.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ServerConfig holds the streaming API server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
