package nmealog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAppendsSharedLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nmea.log")

	w, err := New(path, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	if err := w.Write("session-1", "$GPGGA,one*00"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Write("session-2", "$GPGGA,two*00"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("line count = %d", len(lines))
	}
	if !strings.Contains(lines[0], "session-1") || !strings.HasSuffix(lines[0], "$GPGGA,one*00") {
		t.Errorf("line 0 = %q", lines[0])
	}
}

func TestWritePerSessionFiles(t *testing.T) {
	dir := t.TempDir()
	sessions := filepath.Join(dir, "sessions")

	w, err := New(filepath.Join(dir, "nmea.log"), sessions)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	if err := w.Write("abc", "$GPGGA,first*00"); err != nil {
		t.Fatal(err)
	}
	if err := w.Write("abc", "$GPGGA,second*00"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(sessions, "abc.nmea"))
	if err != nil {
		t.Fatalf("per-session file missing: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "$GPGGA,first*00\n$GPGGA,second*00" {
		t.Errorf("per-session content = %q", got)
	}
}
