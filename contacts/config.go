package contacts

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/contacts/observability"
)

// Config holds the contacts server configuration.
type Config struct {
	Addr     string `yaml:"addr"`
	DBPath   string `yaml:"db_path"`
	TraceDB  string `yaml:"trace_db"` // empty disables SQL tracing
	ObsDB    string `yaml:"obs_db"`   // empty disables observability persistence
	LogLevel string `yaml:"log_level"`
	Seed     bool   `yaml:"seed"`
	MCPHTTP  bool   `yaml:"mcp_http"`

	Server    ServerConfig                  `yaml:"server"`
	Metrics   MetricsConfig                 `yaml:"metrics"`
	Retention observability.RetentionConfig `yaml:"retention"`
}

// ServerConfig holds the HTTP server timeouts.
type ServerConfig struct {
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxFormBytes    int64         `yaml:"max_form_bytes"`
}

// MetricsConfig controls metric buffering.
type MetricsConfig struct {
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DBPath == "" {
		c.DBPath = "contacts.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout <= 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.MaxFormBytes <= 0 {
		c.Server.MaxFormBytes = 64 * 1024
	}
	if c.Metrics.BufferSize <= 0 {
		c.Metrics.BufferSize = 100
	}
	if c.Metrics.FlushInterval <= 0 {
		c.Metrics.FlushInterval = 10 * time.Second
	}
	if c.Retention == (observability.RetentionConfig{}) {
		c.Retention = observability.RetentionConfig{HTTPLogsDays: 7, EventLogsDays: 90, MetricsDays: 30}
	}
}

// LoadConfigFile reads a YAML config file. Defaults are not applied.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
