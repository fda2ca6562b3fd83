package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kroegman/neartrip/internal/logger"
)

func writeConfig(t *testing.T, path, doc string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, `{"mountPoint": "RTK", "port": 2101}`)

	store, err := NewStore(path, logger.Nop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store, path
}

func TestStoreReload(t *testing.T) {
	store, path := newTestStore(t)

	writeConfig(t, path, `{"mountPoint": "RTK", "port": 2101, "stations": [
		{"mountPoint": "A", "host": "h", "port": 2101, "latitude": 1, "longitude": 2}]}`)

	if err := store.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got := len(store.Get().Stations); got != 1 {
		t.Errorf("stations after reload = %d", got)
	}
}

func TestStoreReloadFailureRetainsSnapshot(t *testing.T) {
	store, path := newTestStore(t)
	before := store.Get()

	writeConfig(t, path, `{not json`)

	if err := store.Reload(); err == nil {
		t.Fatal("Reload of broken file succeeded")
	}
	if store.Get() != before {
		t.Error("failed reload replaced the snapshot")
	}
}

func TestStoreReplacePersistsAndPublishes(t *testing.T) {
	store, path := newTestStore(t)

	var notified *Config
	store.Watch(func(cfg *Config) { notified = cfg })

	next := store.Get().Clone()
	next.Stations = append(next.Stations, Station{
		MountPoint: "A", Host: "h", Port: 2101, Latitude: 1, Longitude: 2,
	})
	if err := store.Replace(next); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	if got := len(store.Get().Stations); got != 1 {
		t.Errorf("stations after replace = %d", got)
	}
	if notified == nil || len(notified.Stations) != 1 {
		t.Error("watch callback did not fire with the new snapshot")
	}

	// The file was rewritten; a fresh load sees the station.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load of rewritten file failed: %v", err)
	}
	if len(reloaded.Stations) != 1 {
		t.Error("replace did not persist to the config file")
	}
}

func TestStoreReplaceInvalidLeavesSnapshot(t *testing.T) {
	store, _ := newTestStore(t)
	before := store.Get()

	bad := store.Get().Clone()
	bad.MountPoint = ""
	if err := store.Replace(bad); err == nil {
		t.Fatal("Replace accepted an invalid configuration")
	}
	if store.Get() != before {
		t.Error("failed replace swapped the snapshot")
	}
}

func TestStoreReloadUnchangedFileKeepsEquivalentConfig(t *testing.T) {
	store, _ := newTestStore(t)
	before := store.Get()

	if err := store.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	after := store.Get()
	if before.MountPoint != after.MountPoint || before.Port != after.Port {
		t.Error("reload of unchanged file changed observable configuration")
	}
}
