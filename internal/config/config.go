package config

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/corvusmta/corvus/internal/logging"
	"github.com/corvusmta/corvus/internal/smtpclient"
)

// Duration is a time.Duration that reads and writes TOML as a duration
// string ("30s", "5m").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the application configuration.
type Config struct {
	// Client holds the delivery-outcome engine tunables.
	Client ClientConfig `toml:"client"`

	// Driver tunes the candidate-host attempt loop.
	Driver DriverConfig `toml:"driver"`

	// Logging configures the process-wide logger.
	Logging logging.Config `toml:"logging"`

	// Journal configures the outcome record store.
	Journal JournalConfig `toml:"journal"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `toml:"metrics"`
}

// ClientConfig holds the SMTP client timing tunables.
type ClientConfig struct {
	// RequestDeadline is the combined time budget for sending one command
	// and receiving its response.
	RequestDeadline Duration `toml:"request_deadline"`

	// DeadlineCeiling is the absolute cap on the budget; floor-rate
	// extensions never push the remaining allowance above it.
	DeadlineCeiling Duration `toml:"deadline_ceiling"`

	// MinDataRate is the minimum acceptable data rate in bytes per second.
	// Bytes transferred grant the budget back at this rate; zero disables
	// the extension entirely.
	MinDataRate int `toml:"min_data_rate"`

	// ConnectTimeout bounds the TCP connection establishment.
	ConnectTimeout Duration `toml:"connect_timeout"`

	// MaxConcurrentDeliveries bounds how many messages are delivered at
	// once. Each delivery runs its own independent attempt state.
	MaxConcurrentDeliveries int `toml:"max_concurrent_deliveries"`
}

// DriverConfig mirrors smtpclient.DriverConfig for the config file.
type DriverConfig struct {
	BreakerThreshold uint32   `toml:"breaker_threshold"`
	BreakerCooldown  Duration `toml:"breaker_cooldown"`
}

// JournalConfig configures the outcome journal.
type JournalConfig struct {
	Path string `toml:"path"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// DefaultConfig returns the default configuration. Values mirror the
// tunable-parameter table in params.go.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Client.RequestDeadline = Duration(5 * time.Minute)
	cfg.Client.DeadlineCeiling = Duration(10 * time.Minute)
	cfg.Client.MinDataRate = 500
	cfg.Client.ConnectTimeout = Duration(30 * time.Second)
	cfg.Client.MaxConcurrentDeliveries = 20

	driver := smtpclient.DefaultDriverConfig()
	cfg.Driver.BreakerThreshold = driver.BreakerThreshold
	cfg.Driver.BreakerCooldown = Duration(driver.BreakerCooldown)

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Journal.Path = "/var/lib/corvus/journal.db"

	cfg.Metrics.Enabled = false
	cfg.Metrics.Listen = ":9309"

	return cfg
}

// DriverSettings converts the configured driver section into the engine's
// native config.
func (c *Config) DriverSettings() smtpclient.DriverConfig {
	return smtpclient.DriverConfig{
		BreakerThreshold: c.Driver.BreakerThreshold,
		BreakerCooldown:  c.Driver.BreakerCooldown.Std(),
	}
}

// FindConfigFile looks for a configuration file in conventional locations.
func FindConfigFile(configPath string) (string, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
		return "", fmt.Errorf("config file not found at specified path: %s", configPath)
	}

	locations := []string{
		"./corvus.conf",
		"./config/corvus.conf",
		os.ExpandEnv("$HOME/.corvus.conf"),
		"/etc/corvus/corvus.conf",
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc, nil
		}
	}
	return "", fmt.Errorf("no config file found in default locations")
}

// LoadConfig loads the configuration, starting from defaults and applying
// the TOML file on top. A missing file (when no explicit path was given) is
// not an error; the defaults are used as-is.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	path, err := FindConfigFile(configPath)
	if err != nil {
		if configPath != "" {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Client.RequestDeadline <= 0 {
		return fmt.Errorf("client.request_deadline must be positive")
	}
	if c.Client.DeadlineCeiling < c.Client.RequestDeadline {
		return fmt.Errorf("client.deadline_ceiling must be at least client.request_deadline")
	}
	if c.Client.MinDataRate < 0 {
		return fmt.Errorf("client.min_data_rate must not be negative")
	}
	if c.Client.ConnectTimeout <= 0 {
		return fmt.Errorf("client.connect_timeout must be positive")
	}
	if c.Client.MaxConcurrentDeliveries <= 0 {
		return fmt.Errorf("client.max_concurrent_deliveries must be positive")
	}
	return nil
}

// Dump renders the effective configuration as TOML.
func (c *Config) Dump() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(data), nil
}
