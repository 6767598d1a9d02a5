package sqlstore

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes how to reach the backing database. It is usually
// loaded from a YAML file next to the application config.
type Config struct {
	Dialect string
	DSN     string
	Timeout time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler. The timeout is written in
// time.ParseDuration notation ("5s", "200ms").
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Dialect string `yaml:"dialect"`
		DSN     string `yaml:"dsn"`
		Timeout string `yaml:"timeout,omitempty"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.Dialect = raw.Dialect
	c.DSN = raw.DSN
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("sqlstore: parse timeout: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

// LoadConfig reads a Config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("sqlstore: parse config: %w", err)
	}
	if err := validDialect(cfg.Dialect); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlstore: config %s: dsn is required", path)
	}
	return &cfg, nil
}

// Open opens a Store for the configuration.
func (c *Config) Open() (*Store, error) {
	var opts []Option
	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}
	return Open(c.Dialect, c.DSN, opts...)
}
