package db

import (
	"path/filepath"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer d.Close()

	// Schema applied: the log_events table exists.
	var name string
	err = d.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='log_events'`).Scan(&name)
	if err != nil {
		t.Fatalf("querying schema: %v", err)
	}
	if name != "log_events" {
		t.Errorf("table name = %q, want log_events", name)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "zaya.db")

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	// Re-opening over an existing database must not fail.
	d2, err := Open(path)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	d2.Close()
}
