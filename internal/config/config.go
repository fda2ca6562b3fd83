// Package config defines the proxy configuration, its JSON file format,
// and the Store that publishes atomic snapshots to running sessions.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"
)

// Station is one upstream base station a rover can be routed to.
type Station struct {
	MountPoint string  `json:"mountPoint"`
	Host       string  `json:"host"`
	Port       int     `json:"port"`
	Username   string  `json:"username,omitempty"`
	Password   string  `json:"password,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Active     *bool   `json:"active,omitempty"` // absent means active
}

// IsActive reports whether the station participates in selection.
func (s Station) IsActive() bool {
	return s.Active == nil || *s.Active
}

// Config is one immutable snapshot of the proxy configuration. Snapshots
// are replaced wholesale by the Store and never mutated in place.
type Config struct {
	Interface  string    `json:"interface"`
	Port       int       `json:"port"`
	MountPoint string    `json:"mountPoint"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Stations   []Station `json:"stations"`

	// Admin surface only; the session engine never reads these.
	AdminPort     int    `json:"adminPort,omitempty"`
	AdminUsername string `json:"adminUsername,omitempty"`
	AdminPassword string `json:"adminPassword,omitempty"`

	LogLevel  string `json:"logLevel,omitempty"`  // debug|info|warn|error
	LogFormat string `json:"logFormat,omitempty"` // text|json

	HistoryDatabase string `json:"historyDatabase,omitempty"`
	NMEALog         string `json:"nmeaLog,omitempty"`
	NMEADir         string `json:"nmeaDir,omitempty"`

	RetentionDays int    `json:"retentionDays,omitempty"`
	SweepInterval string `json:"sweepInterval,omitempty"`
}

const (
	DefaultInterface  = "0.0.0.0"
	DefaultPort       = 2101
	DefaultMountPoint = "NEARTRIP"
	DefaultUserAgent  = "NTRIP Client/1.0"
)

// Default returns the configuration written when no config file exists.
func Default() *Config {
	return &Config{
		Interface:       DefaultInterface,
		Port:            DefaultPort,
		MountPoint:      DefaultMountPoint,
		UserAgent:       DefaultUserAgent,
		Stations:        []Station{},
		LogLevel:        "info",
		LogFormat:       "text",
		HistoryDatabase: "neartrip.db",
		NMEALog:         "nmea.log",
		RetentionDays:   7,
		SweepInterval:   "6h",
	}
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a JSON config document. Unknown keys are
// ignored.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadOrCreate loads the config file, writing the default configuration
// to path first when the file does not exist.
func LoadOrCreate(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Write(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// Write persists cfg to path as indented JSON. The file is written to a
// temporary name and renamed so a concurrent reload never sees a partial
// document.
func Write(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// SweepEvery returns the parsed registry sweep interval.
func (c *Config) SweepEvery() time.Duration {
	if d, err := time.ParseDuration(c.SweepInterval); err == nil && d > 0 {
		return d
	}
	return 6 * time.Hour
}

// Retention returns the closed-session retention window.
func (c *Config) Retention() time.Duration {
	days := c.RetentionDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// Clone returns a deep copy of the snapshot, for callers that need to
// derive a modified configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Stations = make([]Station, len(c.Stations))
	copy(out.Stations, c.Stations)
	for i := range out.Stations {
		if c.Stations[i].Active != nil {
			v := *c.Stations[i].Active
			out.Stations[i].Active = &v
		}
	}
	return &out
}

func (c *Config) validate() error {
	if c.Interface == "" {
		c.Interface = DefaultInterface
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MountPoint == "" {
		return fmt.Errorf("mountPoint is required")
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.AdminPort != 0 {
		if c.AdminPort < 1 || c.AdminPort > 65535 {
			return fmt.Errorf("adminPort must be between 1 and 65535, got %d", c.AdminPort)
		}
		if c.AdminPort == c.Port {
			return fmt.Errorf("adminPort must differ from port")
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.HistoryDatabase == "" {
		c.HistoryDatabase = "neartrip.db"
	}
	if c.NMEALog == "" {
		c.NMEALog = "nmea.log"
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = 7
	}
	if c.SweepInterval == "" {
		c.SweepInterval = "6h"
	}
	if _, err := time.ParseDuration(c.SweepInterval); err != nil {
		return fmt.Errorf("sweepInterval is not a duration: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Stations))
	for i, s := range c.Stations {
		if s.MountPoint == "" {
			return fmt.Errorf("stations[%d]: mountPoint is required", i)
		}
		if _, dup := seen[s.MountPoint]; dup {
			return fmt.Errorf("stations[%d]: duplicate mountPoint %q", i, s.MountPoint)
		}
		seen[s.MountPoint] = struct{}{}
		if s.Host == "" {
			return fmt.Errorf("station %q: host is required", s.MountPoint)
		}
		if s.Port < 1 || s.Port > 65535 {
			return fmt.Errorf("station %q: port must be between 1 and 65535, got %d", s.MountPoint, s.Port)
		}
		if math.IsNaN(s.Latitude) || s.Latitude < -90 || s.Latitude > 90 {
			return fmt.Errorf("station %q: latitude out of range: %v", s.MountPoint, s.Latitude)
		}
		if math.IsNaN(s.Longitude) || s.Longitude < -180 || s.Longitude > 180 {
			return fmt.Errorf("station %q: longitude out of range: %v", s.MountPoint, s.Longitude)
		}
	}
	return nil
}
