package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/dbburn/dbburn/internal/driver"
)

// Config holds everything a run needs.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Run      RunConfig      `mapstructure:"run"`
}

// DatabaseConfig identifies the target database.
type DatabaseConfig struct {
	// Kind is the database type (postgres, mysql, sqlserver, oracle, sqlite).
	Kind string `mapstructure:"kind"`

	Host string `mapstructure:"host"`

	// Port 0 means the kind's default port.
	Port int `mapstructure:"port"`

	// Database is the database name, the Oracle service name, or the
	// SQLite file path.
	Database string `mapstructure:"database"`

	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RunConfig shapes the load test itself.
type RunConfig struct {
	Workers         int           `mapstructure:"workers"`
	Duration        time.Duration `mapstructure:"duration"`
	MinPoolSize     int           `mapstructure:"min_pool_size"`
	MaxPoolSize     int           `mapstructure:"max_pool_size"`
	AcquireTimeout  time.Duration `mapstructure:"acquire_timeout"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
	DrainTimeout    time.Duration `mapstructure:"drain_timeout"`

	// Seed makes payload and key generation reproducible; 0 picks a
	// random seed.
	Seed int64 `mapstructure:"seed"`
}

// Load reads configuration from an optional file and DBBURN_* environment
// variables, layered over the compile-time defaults. An empty path means
// no config file is required; a named file that is missing is an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("run.workers", DefaultWorkers)
	v.SetDefault("run.duration", DefaultDuration)
	v.SetDefault("run.min_pool_size", DefaultMinPoolSize)
	v.SetDefault("run.max_pool_size", DefaultMaxPoolSize)
	v.SetDefault("run.acquire_timeout", DefaultAcquireTimeout)
	v.SetDefault("run.monitor_interval", DefaultMonitorInterval)
	v.SetDefault("run.drain_timeout", DefaultDrainTimeout)

	v.SetEnvPrefix("DBBURN")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Kind parses the configured database kind.
func (c *DatabaseConfig) ParsedKind() (driver.Kind, error) {
	return driver.ParseKind(c.Kind)
}

// Validate checks the per-kind required parameters and the run shape.
func (c *Config) Validate() error {
	kind, err := c.Database.ParsedKind()
	if err != nil {
		return err
	}

	switch kind {
	case driver.SQLite:
		// Host and credentials are meaningless for a file database.
	case driver.Oracle:
		if c.Database.Host == "" {
			return fmt.Errorf("config: host is required for %s", kind)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("config: service name is required for %s", kind)
		}
	default:
		if c.Database.Host == "" {
			return fmt.Errorf("config: host is required for %s", kind)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("config: database name is required for %s", kind)
		}
	}

	r := &c.Run
	if r.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", r.Workers)
	}
	if r.Duration <= 0 {
		return fmt.Errorf("config: duration must be positive, got %s", r.Duration)
	}
	if r.MaxPoolSize < 1 {
		return fmt.Errorf("config: max pool size must be at least 1, got %d", r.MaxPoolSize)
	}
	if r.MinPoolSize < 0 || r.MinPoolSize > r.MaxPoolSize {
		return fmt.Errorf("config: min pool size %d out of range [0, %d]", r.MinPoolSize, r.MaxPoolSize)
	}
	if r.AcquireTimeout <= 0 {
		return fmt.Errorf("config: acquire timeout must be positive, got %s", r.AcquireTimeout)
	}
	if r.MonitorInterval <= 0 {
		return fmt.Errorf("config: monitor interval must be positive, got %s", r.MonitorInterval)
	}
	return nil
}

// ConnParams converts the database section to driver connection parameters.
func (c *DatabaseConfig) ConnParams() driver.ConnParams {
	return driver.ConnParams{
		Host:       c.Host,
		Port:       c.Port,
		Identifier: c.Database,
		User:       c.User,
		Password:   c.Password,
	}
}
