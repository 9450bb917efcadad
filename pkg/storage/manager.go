package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName returns the name a media item is saved under: {shortcode}.jpg for a
// single image, {shortcode}_{index}.jpg for sidecar children, .mp4 for videos.
func FileName(shortcode string, index int, isVideo bool) string {
	ext := ".jpg"
	if isVideo {
		ext = ".mp4"
	}
	if index > 0 {
		return fmt.Sprintf("%s_%d%s", shortcode, index, ext)
	}
	return shortcode + ext
}

// Manager handles file storage operations and duplicate detection
type Manager struct {
	outputDir  string
	downloaded map[string]bool
	mu         sync.RWMutex
}

// NewManager creates the output directory and indexes files already in it
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir:  outputDir,
		downloaded: make(map[string]bool),
	}
	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		m.downloaded[name] = true
	}
	return nil
}

// IsDownloaded reports whether name exists in the output directory
func (m *Manager) IsDownloaded(name string) bool {
	m.mu.RLock()
	known := m.downloaded[name]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.outputDir, name)); err == nil {
		m.mu.Lock()
		m.downloaded[name] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// Save stores the content of r under name
func (m *Manager) Save(r io.Reader, name string) (int64, error) {
	return m.SaveFunc(name, func(w io.Writer) (int64, error) {
		return io.Copy(w, r)
	})
}

// SaveBytes stores data under name
func (m *Manager) SaveBytes(data []byte, name string) (int64, error) {
	return m.Save(bytes.NewReader(data), name)
}

// SaveFunc lets write fill a temporary file which is renamed to name once write
// succeeds. A failed write leaves nothing behind.
func (m *Manager) SaveFunc(name string, write func(io.Writer) (int64, error)) (int64, error) {
	filename := filepath.Join(m.outputDir, name)

	out, err := os.CreateTemp(m.outputDir, "."+name+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	n, err := write(out)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to save %s: %w", name, err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to close file: %w", closeErr)
	}
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.downloaded[name] = true
	m.mu.Unlock()

	return n, nil
}

// SetModTime stamps name with t, typically the post's creation time
func (m *Manager) SetModTime(name string, t time.Time) error {
	if t.IsZero() {
		return nil
	}
	if err := os.Chtimes(filepath.Join(m.outputDir, name), t, t); err != nil {
		return fmt.Errorf("failed to set file time: %w", err)
	}
	return nil
}

// Path returns the full path of name
func (m *Manager) Path(name string) string {
	return filepath.Join(m.outputDir, name)
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// DownloadedCount returns the number of known files
func (m *Manager) DownloadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.downloaded)
}
