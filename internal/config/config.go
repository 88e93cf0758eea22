package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Preview PreviewConfig `yaml:"preview"`
	Gallery GalleryConfig `yaml:"gallery"`
	Relay   RelayConfig   `yaml:"relay"`
	Probe   ProbeConfig   `yaml:"probe"`
	Log     LogConfig     `yaml:"log"`
}

// DeviceConfig locates the camera service. URL is the service root; camera,
// file and system endpoints are derived from it.
type DeviceConfig struct {
	URL            string        `yaml:"url"`
	Token          string        `yaml:"token"`
	Timeout        time.Duration `yaml:"timeout"`
	StatusInterval time.Duration `yaml:"status_interval"`
}

type PreviewConfig struct {
	Interval         time.Duration `yaml:"interval"`
	FailureThreshold int           `yaml:"failure_threshold"`
	BackoffMax       time.Duration `yaml:"backoff_max"`
	MaxInFlight      int           `yaml:"max_in_flight"`
}

type GalleryConfig struct {
	NewTTL      time.Duration `yaml:"new_ttl"`
	DownloadDir string        `yaml:"download_dir"`
}

// RelayConfig enables the local websocket preview relay when Addr is set.
type RelayConfig struct {
	Addr   string  `yaml:"addr"`
	MaxFPS float64 `yaml:"max_fps"`
}

type ProbeConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	Count      int           `yaml:"count"`
	Privileged bool          `yaml:"privileged"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			URL:            "http://127.0.0.1:8000",
			Timeout:        10 * time.Second,
			StatusInterval: 5 * time.Second,
		},
		Preview: PreviewConfig{
			Interval:         100 * time.Millisecond,
			FailureThreshold: 10,
			BackoffMax:       5 * time.Second,
			MaxInFlight:      2,
		},
		Gallery: GalleryConfig{
			NewTTL:      30 * time.Second,
			DownloadDir: ".",
		},
		Relay: RelayConfig{
			MaxFPS: 10,
		},
		Probe: ProbeConfig{
			Interval: 15 * time.Second,
			Count:    3,
		},
		Log: LogConfig{
			File:  "tetherview.log",
			Level: "info",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads a YAML config file and overlays it on the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Device.URL)
	if err != nil {
		return fmt.Errorf("device.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("device.url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("device.url: missing host")
	}
	if c.Device.Timeout <= 0 {
		return fmt.Errorf("device.timeout must be positive")
	}
	if c.Device.StatusInterval <= 0 {
		return fmt.Errorf("device.status_interval must be positive")
	}
	if c.Preview.Interval <= 0 {
		return fmt.Errorf("preview.interval must be positive")
	}
	if c.Preview.FailureThreshold < 1 {
		return fmt.Errorf("preview.failure_threshold must be at least 1")
	}
	if c.Preview.BackoffMax < c.Preview.Interval {
		return fmt.Errorf("preview.backoff_max must not be shorter than preview.interval")
	}
	if c.Preview.MaxInFlight < 1 {
		return fmt.Errorf("preview.max_in_flight must be at least 1")
	}
	if c.Relay.Addr != "" && c.Relay.MaxFPS <= 0 {
		return fmt.Errorf("relay.max_fps must be positive")
	}
	if c.Probe.Enabled && (c.Probe.Interval <= 0 || c.Probe.Count < 1) {
		return fmt.Errorf("probe.interval and probe.count must be positive")
	}
	return nil
}

// DeviceHost returns the hostname of the device service, without port.
func (c *Config) DeviceHost() string {
	u, err := url.Parse(c.Device.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
