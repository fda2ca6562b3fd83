package registry

import (
	"testing"
	"time"
)

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry(nil)

	reg.Track("s1", "10.0.0.1:5000")

	s, ok := reg.Get("s1")
	if !ok {
		t.Fatal("tracked session not found")
	}
	if !s.Active || s.RemoteAddr != "10.0.0.1:5000" {
		t.Fatalf("unexpected session: %+v", s)
	}

	reg.UpdatePosition("s1", Position{Lat: 37.5, Lon: -122.0, Quality: 1, Satellites: 8})
	reg.SetMount("s1", "BASE1")
	reg.AddBytesSent("s1", 100)
	reg.AddBytesSent("s1", 50)
	reg.AddBytesReceived("s1", 30)

	s, _ = reg.Get("s1")
	if s.BytesSent != 150 || s.BytesReceived != 30 {
		t.Errorf("counters = %d/%d", s.BytesSent, s.BytesReceived)
	}
	if s.Mount != "BASE1" {
		t.Errorf("mount = %q", s.Mount)
	}
	if s.Position == nil || s.Position.Lat != 37.5 {
		t.Errorf("position = %+v", s.Position)
	}

	reg.MarkClosed("s1")
	s, _ = reg.Get("s1")
	if s.Active {
		t.Error("session still active after MarkClosed")
	}
	if s.DisconnectedAt == nil {
		t.Error("disconnectedAt not set")
	}
	if s.Mount != "" {
		t.Error("mount not cleared on close")
	}
	if reg.CountActive() != 0 {
		t.Errorf("active count = %d", reg.CountActive())
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Track("s1", "a")

	s, _ := reg.Get("s1")
	s.BytesSent = 999

	again, _ := reg.Get("s1")
	if again.BytesSent != 0 {
		t.Error("Get exposed internal state")
	}
}

func TestRegistryListNewestFirst(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Track("old", "a")
	time.Sleep(5 * time.Millisecond)
	reg.Track("new", "b")

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("list length = %d", len(list))
	}
	if list[0].ID != "new" {
		t.Errorf("list order: first = %s", list[0].ID)
	}
}

func TestRegistrySweep(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Track("stale", "a")
	reg.MarkClosed("stale")
	reg.Track("fresh", "b")

	// A cutoff in the future sweeps everything that is closed or older.
	removed := reg.Sweep(time.Now().Add(time.Minute))
	if len(removed) != 2 {
		t.Fatalf("removed = %v", removed)
	}
	if _, ok := reg.Get("stale"); ok {
		t.Error("stale session survived sweep")
	}

	reg.Track("kept", "c")
	if removed := reg.Sweep(time.Now().Add(-time.Minute)); len(removed) != 0 {
		t.Errorf("young session swept: %v", removed)
	}
	if _, ok := reg.Get("kept"); !ok {
		t.Error("young session missing")
	}
}
