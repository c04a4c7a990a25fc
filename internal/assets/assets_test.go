package assets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndCache(t *testing.T) {
	dir := t.TempDir()
	tilePath := filepath.Join(dir, "img", "level_0", "tiles")
	if err := os.MkdirAll(tilePath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := []byte("pixels")
	if err := os.WriteFile(filepath.Join(tilePath, "tile_000_000.png"), want, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m := NewManager(dir)

	data, err := m.Load("img/level_0/tiles/tile_000_000.png")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != string(want) {
		t.Errorf("loaded %q, want %q", data, want)
	}

	// Second load must come from cache.
	if _, err := m.Load("img/level_0/tiles/tile_000_000.png"); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	hits, misses := m.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats hits=%d misses=%d, want 1/1", hits, misses)
	}
}

func TestLoadMissing(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.Load("dem/level_3/tiles/tile_001_002.png"); err == nil {
		t.Error("expected error for missing asset")
	}
}

func TestLoadRejectsEscapingPaths(t *testing.T) {
	m := NewManager(t.TempDir())
	for _, path := range []string{"../secret", "a/../../secret", "/etc/passwd"} {
		if _, err := m.Load(path); err == nil {
			t.Errorf("expected error for path %q", path)
		}
	}
}

func TestClearResetsStats(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m := NewManager(dir)
	if _, err := m.Load("manifest.json"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Clear()

	hits, misses := m.Stats()
	if hits != 0 || misses != 0 {
		t.Errorf("stats after clear hits=%d misses=%d, want 0/0", hits, misses)
	}
}
