// Package config loads and validates netport's YAML configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anstrom/netport/internal/db"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/scanning"
	"github.com/anstrom/netport/internal/workers"
)

// Config represents the complete configuration.
type Config struct {
	Scanning  ScanningConfig   `yaml:"scanning" json:"scanning"`
	API       APIConfig        `yaml:"api" json:"api"`
	Jobs      JobsConfig       `yaml:"jobs" json:"jobs"`
	Database  db.Config        `yaml:"database" json:"database"`
	Logging   logging.Config   `yaml:"logging" json:"logging"`
	Schedules []ScheduleConfig `yaml:"schedules" json:"schedules"`
}

// ScanningConfig holds defaults applied to scans that do not specify them.
type ScanningConfig struct {
	// Default port range, "start-end"
	DefaultRange string `yaml:"default_range" json:"default_range"`

	// Default number of simultaneous probes
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// Upper bound for any requested concurrency
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`

	// Per-connection timeout
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// DNS server ("host[:port]") queried directly instead of the system resolver
	DNSServer string `yaml:"dns_server" json:"dns_server"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// CORS settings
	EnableCORS  bool     `yaml:"enable_cors" json:"enable_cors"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// Require an X-API-Key header matching one of the bcrypt hashes
	AuthEnabled  bool     `yaml:"auth_enabled" json:"auth_enabled"`
	APIKeyHashes []string `yaml:"api_key_hashes" json:"-"`
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	workers.Config `yaml:",inline"`

	// Directory where completed reports are saved automatically; empty disables it
	ReportsDir string `yaml:"reports_dir" json:"reports_dir"`
}

// ScheduleConfig declares a recurring scan.
type ScheduleConfig struct {
	Name    string        `yaml:"name" json:"name"`
	Cron    string        `yaml:"cron" json:"cron"`
	Host    string        `yaml:"host" json:"host"`
	Range   string        `yaml:"range" json:"range"`
	Threads int           `yaml:"threads" json:"threads"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Default returns a configuration with the built-in defaults.
func Default() *Config {
	return &Config{
		Scanning: ScanningConfig{
			DefaultRange:   "1-1024",
			Concurrency:    200,
			MaxConcurrency: scanning.MaxConcurrency,
			Timeout:        time.Second,
		},
		API: APIConfig{
			Host:         "127.0.0.1",
			Port:         5000,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			EnableCORS:   true,
			CORSOrigins:  []string{"*"},
		},
		Jobs: JobsConfig{
			Config:     workers.DefaultConfig(),
			ReportsDir: "reports",
		},
		Database: db.DefaultConfig(),
		Logging:  logging.DefaultConfig(),
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the rest of the program cannot use.
func (c *Config) Validate() error {
	if _, err := scanning.ParsePortRange(c.Scanning.DefaultRange); err != nil {
		return fmt.Errorf("scanning.default_range: %w", err)
	}
	if c.Scanning.MaxConcurrency <= 0 || c.Scanning.MaxConcurrency > scanning.MaxConcurrency {
		return fmt.Errorf("scanning.max_concurrency must be between 1 and %d", scanning.MaxConcurrency)
	}
	if c.Scanning.Concurrency <= 0 {
		return fmt.Errorf("scanning.concurrency must be positive")
	}
	if c.Scanning.Timeout <= 0 {
		return fmt.Errorf("scanning.timeout must be positive")
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be between 1 and 65535")
	}
	if c.API.AuthEnabled && len(c.API.APIKeyHashes) == 0 {
		return fmt.Errorf("api.api_key_hashes is required when api.auth_enabled is set")
	}

	if c.Jobs.Size <= 0 {
		return fmt.Errorf("jobs.workers must be positive")
	}
	if c.Jobs.QueueSize <= 0 {
		return fmt.Errorf("jobs.queue_size must be positive")
	}

	if c.Database.Enabled {
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required when the database is enabled")
		}
		if c.Database.Username == "" {
			return fmt.Errorf("database.username is required when the database is enabled")
		}
	}

	switch c.Logging.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	for i, s := range c.Schedules {
		if s.Host == "" {
			return fmt.Errorf("schedules[%d]: host is required", i)
		}
		if s.Cron == "" {
			return fmt.Errorf("schedules[%d]: cron is required", i)
		}
		if s.Range != "" {
			if _, err := scanning.ParsePortRange(s.Range); err != nil {
				return fmt.Errorf("schedules[%d].range: %w", i, err)
			}
		}
	}
	return nil
}

// GetAPIAddress returns the API listen address.
func (c *Config) GetAPIAddress() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}
