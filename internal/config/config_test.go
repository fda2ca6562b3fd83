package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{"mountPoint": "RTK"}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Interface != DefaultInterface {
		t.Errorf("interface = %q", cfg.Interface)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("userAgent = %q", cfg.UserAgent)
	}
	if cfg.RetentionDays != 7 {
		t.Errorf("retentionDays = %d", cfg.RetentionDays)
	}
}

func TestParseIgnoresUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte(`{"mountPoint": "RTK", "unknownThing": 42}`)); err != nil {
		t.Fatalf("unknown key rejected: %v", err)
	}
}

func TestParseValidation(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"missing mountPoint", `{}`},
		{"bad port", `{"mountPoint": "RTK", "port": 70000}`},
		{"admin port equals port", `{"mountPoint": "RTK", "port": 2101, "adminPort": 2101}`},
		{"station missing host", `{"mountPoint": "RTK", "stations": [{"mountPoint": "A", "port": 2101, "latitude": 0, "longitude": 0}]}`},
		{"station bad latitude", `{"mountPoint": "RTK", "stations": [{"mountPoint": "A", "host": "h", "port": 2101, "latitude": 91, "longitude": 0}]}`},
		{"station bad longitude", `{"mountPoint": "RTK", "stations": [{"mountPoint": "A", "host": "h", "port": 2101, "latitude": 0, "longitude": -181}]}`},
		{"duplicate mount points", `{"mountPoint": "RTK", "stations": [
			{"mountPoint": "A", "host": "h", "port": 2101, "latitude": 0, "longitude": 0},
			{"mountPoint": "A", "host": "h2", "port": 2101, "latitude": 1, "longitude": 1}]}`},
		{"invalid json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.doc)); err == nil {
				t.Errorf("Parse accepted %s", tc.doc)
			}
		})
	}
}

func TestStationIsActiveDefaultsTrue(t *testing.T) {
	cfg, err := Parse([]byte(`{"mountPoint": "RTK", "stations": [
		{"mountPoint": "A", "host": "h", "port": 2101, "latitude": 0, "longitude": 0},
		{"mountPoint": "B", "host": "h", "port": 2101, "latitude": 0, "longitude": 0, "active": false}]}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !cfg.Stations[0].IsActive() {
		t.Error("absent active flag should mean active")
	}
	if cfg.Stations[1].IsActive() {
		t.Error("active: false should mean inactive")
	}
}

func TestLoadOrCreateWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if cfg.MountPoint != DefaultMountPoint {
		t.Errorf("mountPoint = %q", cfg.MountPoint)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config file not written: %v", err)
	}

	// A second load reads the written file.
	again, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if again.MountPoint != cfg.MountPoint {
		t.Errorf("reloaded mountPoint = %q", again.MountPoint)
	}
}

func TestCloneIsDeep(t *testing.T) {
	on := true
	cfg := &Config{
		MountPoint: "RTK",
		Stations: []Station{
			{MountPoint: "A", Host: "h", Port: 2101, Active: &on},
		},
	}
	clone := cfg.Clone()
	clone.Stations[0].MountPoint = "B"
	*clone.Stations[0].Active = false

	if cfg.Stations[0].MountPoint != "A" {
		t.Error("clone shares the station slice")
	}
	if !*cfg.Stations[0].Active {
		t.Error("clone shares the active pointer")
	}
}
