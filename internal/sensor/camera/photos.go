package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sensorlog/internal/logger"
)

const photoTimeLayout = "2006-01-02_15-04-05.000"

// PhotoStore writes captured JPEG frames under a directory.
type PhotoStore struct {
	dir    string
	mu     sync.Mutex
	logger *logger.Logger
}

// NewPhotoStore creates a store rooted at dir. The directory is created on
// first save.
func NewPhotoStore(dir string, logger *logger.Logger) *PhotoStore {
	return &PhotoStore{dir: dir, logger: logger}
}

// Dir returns the photo directory.
func (s *PhotoStore) Dir() string {
	return s.dir
}

// Save writes data to a file named after at and source, and returns its path.
func (s *PhotoStore) Save(data []byte, at time.Time, source string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to save empty photo")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create photo directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.jpg", at.Format(photoTimeLayout), source)
	fullpath := filepath.Join(s.dir, filename)

	if err := os.WriteFile(fullpath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save photo %s: %w", filename, err)
	}

	s.logger.Info("Saved photo %s (%d bytes)", filename, len(data))
	return fullpath, nil
}

// Contains reports whether path lies inside the photo directory.
func (s *PhotoStore) Contains(path string) bool {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Remove deletes a photo previously returned by Save. Missing files are ignored.
func (s *PhotoStore) Remove(path string) error {
	if !s.Contains(path) {
		return fmt.Errorf("photo %s is outside %s", path, s.dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove photo: %w", err)
	}
	return nil
}

// Size returns the total size in bytes of the files in the photo directory.
// A directory that does not exist yet has size 0.
func (s *PhotoStore) Size() (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read photo directory: %w", err)
	}

	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
