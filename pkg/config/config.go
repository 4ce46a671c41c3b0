package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
		GatherTimeout time.Duration `yaml:"gather_timeout"`
	} `yaml:"webrtc"`

	Storage struct {
		Dir string `yaml:"dir"`

		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
		} `yaml:"redis"`
	} `yaml:"storage"`

	Media struct {
		MaxImageBytes int64 `yaml:"max_image_bytes"`
		MaxVideoBytes int64 `yaml:"max_video_bytes"`
	} `yaml:"media"`

	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage dir is required")
	}
	if c.Media.MaxImageBytes <= 0 {
		return fmt.Errorf("media max_image_bytes must be positive")
	}
	if c.Media.MaxVideoBytes <= 0 {
		return fmt.Errorf("media max_video_bytes must be positive")
	}
	if c.Media.MaxVideoBytes < c.Media.MaxImageBytes {
		return fmt.Errorf("media max_video_bytes must be at least max_image_bytes")
	}
	if c.WebRTC.GatherTimeout <= 0 {
		return fmt.Errorf("webrtc gather_timeout must be positive")
	}
	if c.Storage.Redis.Enabled && c.Storage.Redis.Address == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiting requests_per_second must be positive")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate limiting burst must be positive")
		}
	}
	return nil
}

// Load reads and parses configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults. The HTTP API
// binds to loopback only: it exists for the local renderer, not the network.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = "127.0.0.1:8732"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second

	cfg.WebRTC.GatherTimeout = 30 * time.Second

	cfg.Storage.Dir = "data"
	cfg.Storage.Redis.Enabled = false
	cfg.Storage.Redis.Address = "localhost:6379"
	cfg.Storage.Redis.PoolSize = 10

	cfg.Media.MaxImageBytes = 5 * 1024 * 1024
	cfg.Media.MaxVideoBytes = 100 * 1024 * 1024

	cfg.Export.Dir = "exports"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 64

	return cfg
}
