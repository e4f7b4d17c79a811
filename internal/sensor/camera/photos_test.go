package camera

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sensorlog/internal/logger"
)

func TestPhotoStore_SaveAndRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "photos")
	store := NewPhotoStore(dir, logger.Discard())

	at := time.Date(2025, 6, 15, 14, 30, 0, 123000000, time.UTC)
	path, err := store.Save([]byte{0xFF, 0xD8, 0xFF}, at, "camera0")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if filepath.Base(path) != "2025-06-15_14-30-00.123_camera0.jpg" {
		t.Errorf("Unexpected file name %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) != 3 {
		t.Fatalf("Photo not written: %v", err)
	}

	if err := store.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Photo should be gone")
	}
	if err := store.Remove(path); err != nil {
		t.Errorf("Removing a missing photo should be a no-op, got %v", err)
	}
}

func TestPhotoStore_RejectsEmptyAndOutsidePaths(t *testing.T) {
	dir := t.TempDir()
	store := NewPhotoStore(filepath.Join(dir, "photos"), logger.Discard())

	if _, err := store.Save(nil, time.Now(), "camera0"); err == nil {
		t.Error("Expected error for empty photo")
	}

	outside := filepath.Join(dir, "other.jpg")
	if err := os.WriteFile(outside, []byte{1}, 0644); err != nil {
		t.Fatal(err)
	}
	err := store.Remove(outside)
	if err == nil || !strings.Contains(err.Error(), "outside") {
		t.Errorf("Expected outside-directory error, got %v", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Error("File outside the photo directory must not be removed")
	}
}

func TestCamera_DisabledDevice(t *testing.T) {
	cam := Open(-1, NewPhotoStore(t.TempDir(), logger.Discard()), logger.Discard())
	if cam.Available() {
		t.Error("Negative device should be unavailable")
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestPhotoStore_SizeAndContains(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "photos")
	store := NewPhotoStore(dir, logger.Discard())

	if size, err := store.Size(); err != nil || size != 0 {
		t.Errorf("Missing directory should have size 0, got %d, %v", size, err)
	}

	path, err := store.Save(make([]byte, 100), time.UnixMilli(1000), "camera0")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(make([]byte, 50), time.UnixMilli(2000), "camera0"); err != nil {
		t.Fatal(err)
	}
	if size, err := store.Size(); err != nil || size != 150 {
		t.Errorf("Expected size 150, got %d, %v", size, err)
	}

	if !store.Contains(path) {
		t.Errorf("%s should be inside the store", path)
	}
	dotted := filepath.Join(dir, "..x.jpg")
	if !store.Contains(dotted) {
		t.Errorf("%s should be inside the store", dotted)
	}
	if err := os.WriteFile(dotted, []byte{1}, 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(dotted); err != nil {
		t.Errorf("Remove of a dot-prefixed photo failed: %v", err)
	}

	for _, p := range []string{dir, filepath.Join(dir, "..", "x.jpg"), "/etc/passwd"} {
		if store.Contains(p) {
			t.Errorf("%s should not be inside the store", p)
		}
	}
}
