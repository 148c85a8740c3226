package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExportArchive keeps rendered grade exports on disk so that signed
// download links can serve them after the rendering request finished.
type ExportArchive struct {
	baseDir string
}

// NewExportArchive ensures the archive directory exists and returns a handle.
func NewExportArchive(baseDir string) (*ExportArchive, error) {
	if baseDir == "" {
		baseDir = "./archives"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &ExportArchive{baseDir: baseDir}, nil
}

// Save writes the rendered export under the given relative name.
func (a *ExportArchive) Save(name string, data []byte) (string, error) {
	path := a.resolve(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare archive directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write archived export: %w", err)
	}
	return name, nil
}

// Read loads an archived export back into memory.
func (a *ExportArchive) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(a.resolve(name))
	if err != nil {
		return nil, fmt.Errorf("read archived export: %w", err)
	}
	return data, nil
}

// CleanupOlderThan deletes archived exports whose download window has
// passed and returns the removed names.
func (a *ExportArchive) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	removed := make([]string, 0)
	err := filepath.WalkDir(a.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		rel, err := filepath.Rel(a.baseDir, path)
		if err != nil {
			rel = path
		}
		removed = append(removed, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup archives: %w", err)
	}
	return removed, nil
}

func (a *ExportArchive) resolve(name string) string {
	return filepath.Join(a.baseDir, filepath.Clean("/"+name))
}
