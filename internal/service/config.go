package service

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/streamhouse/shardstats/internal/export"
	exporthttp "github.com/streamhouse/shardstats/internal/export/http"
	"github.com/streamhouse/shardstats/internal/stats"
)

// StatsConfig configures the aggregation engine.
type StatsConfig struct {
	// Server enables the server-side latency histograms.
	Server bool `yaml:"server"`

	// Retention is how much time-series history each shard keeps.
	// Defaults to 10m.
	Retention time.Duration `yaml:"retention"`

	// MaxQueryInterval caps the rate windows queries may ask for.
	// Defaults to the retention.
	MaxQueryInterval time.Duration `yaml:"max_query_interval"`

	// EnforceQueryInterval rejects oversized rate windows instead of
	// silently degrading them to retained history.
	EnforceQueryInterval bool `yaml:"enforce_query_interval"`
}

// Params converts the config into engine parameters.
func (c StatsConfig) Params() stats.Params {
	return stats.Params{
		IsServer:             c.Server,
		Retention:            c.Retention,
		MaxQueryInterval:     c.MaxQueryInterval,
		EnforceQueryInterval: c.EnforceQueryInterval,
	}
}

// WorkloadConfig configures the built-in synthetic traffic generator.
// It exists to exercise the pipeline end to end without a real server.
type WorkloadConfig struct {
	// Enabled turns the generator on.
	Enabled bool `yaml:"enabled"`

	// Writers is the number of writer goroutines, one shard each.
	// Defaults to 4.
	Writers int `yaml:"writers"`

	// Streams is the number of distinct stream keys written to.
	// Defaults to 8.
	Streams int `yaml:"streams"`

	// Subscriptions is the number of distinct subscription keys.
	// Defaults to 8.
	Subscriptions int `yaml:"subscriptions"`

	// WriteInterval is the delay between writes per writer.
	// Defaults to 10ms.
	WriteInterval time.Duration `yaml:"write_interval"`
}

// Config is the top-level service configuration.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// ReportInterval is how often snapshots are taken and exported.
	// Defaults to 15s.
	ReportInterval time.Duration `yaml:"report_interval"`

	// Intervals are the rate windows included in reports.
	// Defaults to 1m, 5m, 10m.
	Intervals []time.Duration `yaml:"intervals"`

	// Stats configures the aggregation engine.
	Stats StatsConfig `yaml:"stats"`

	// Health configures the Prometheus health metrics server.
	Health export.HealthConfig `yaml:"health"`

	// ClickHouse configures the ClickHouse exporter.
	ClickHouse export.ClickHouseConfig `yaml:"clickhouse"`

	// HTTP configures the NDJSON HTTP exporter.
	HTTP exporthttp.Config `yaml:"http"`

	// Workload configures the synthetic traffic generator.
	Workload WorkloadConfig `yaml:"workload"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		ReportInterval: 15 * time.Second,
		Intervals:      export.DefaultIntervals,
		Stats: StatsConfig{
			Server:    true,
			Retention: stats.DefaultRetention,
		},
		Health: export.HealthConfig{
			Addr: ":9090",
		},
		Workload: WorkloadConfig{
			Writers:       4,
			Streams:       8,
			Subscriptions: 8,
			WriteInterval: 10 * time.Millisecond,
		},
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for required fields and consistency.
func (c *Config) Validate() error {
	if c.ReportInterval <= 0 {
		return fmt.Errorf("report_interval must be positive")
	}

	for _, iv := range c.Intervals {
		if iv <= 0 {
			return fmt.Errorf("intervals must be positive, got %s", iv)
		}
	}

	if c.Stats.Retention < 0 {
		return fmt.Errorf("stats.retention cannot be negative")
	}

	if c.ClickHouse.Enabled && c.ClickHouse.Endpoint == "" {
		return fmt.Errorf("clickhouse.endpoint is required when enabled")
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}

	if c.Workload.Enabled {
		if c.Workload.Writers <= 0 {
			return fmt.Errorf("workload.writers must be positive")
		}

		if c.Workload.Streams <= 0 || c.Workload.Subscriptions <= 0 {
			return fmt.Errorf("workload.streams and workload.subscriptions must be positive")
		}
	}

	return nil
}
