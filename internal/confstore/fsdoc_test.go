package confstore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/orrery-labs/inkframe/internal/coreerr"
)

func TestFsLoader_MissingFileIsNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := fsLoader(filepath.Join(dir, "missing.json"))()
	if !errors.Is(err, coreerr.NotFound) {
		t.Fatalf("expected coreerr.NotFound, got %v", err)
	}
}

func TestFsSaverThenFsLoader_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "settings.json")

	save := fsSaver(path)
	if err := save(map[string]any{"brightness": float64(7)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	content, err := fsLoader(path)()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if content["brightness"] != float64(7) {
		t.Fatalf("round trip mismatch: %v", content)
	}
}

func TestConfigurationObject_FilesystemBacked(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings", "display-settings.json")
	obj := New("settings:display", fsLoader(path), fsSaver(path))

	hash, err := obj.Save("", map[string]any{"width": float64(800)})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	obj.Evict()
	content, reloadedHash, err := obj.Get()
	if err != nil {
		t.Fatalf("Get after evict: %v", err)
	}
	if reloadedHash != hash {
		t.Fatalf("hash changed across reload: got %q want %q", reloadedHash, hash)
	}
	if content["width"] != float64(800) {
		t.Fatalf("unexpected content after reload: %v", content)
	}
}
