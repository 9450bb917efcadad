// Package stamps remembers, per profile, the newest post already crawled so a
// later run can stop at the first post it has seen before.
package stamps

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is the stored state of one profile
type Entry struct {
	ProfileID     string    `yaml:"profile_id,omitempty"`
	PostTimestamp time.Time `yaml:"post_timestamp"`
}

// LatestStamps is a YAML backed map of username to Entry. It is safe for
// concurrent use.
type LatestStamps struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	dirty   bool
}

// Load reads path. A missing file yields an empty set.
func Load(path string) (*LatestStamps, error) {
	s := &LatestStamps{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stamps file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("failed to parse stamps file: %w", err)
	}
	if s.entries == nil {
		s.entries = make(map[string]Entry)
	}
	return s, nil
}

// Path returns the file the stamps are saved to
func (s *LatestStamps) Path() string {
	return s.path
}

// PostTimestamp returns the newest known post time of username
func (s *LatestStamps) PostTimestamp(username string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[username]
	if !ok || e.PostTimestamp.IsZero() {
		return time.Time{}, false
	}
	return e.PostTimestamp, true
}

// SetPostTimestamp records t for username unless a newer time is stored
func (s *LatestStamps) SetPostTimestamp(username, profileID string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[username]
	if profileID != "" {
		e.ProfileID = profileID
	}
	if t.After(e.PostTimestamp) {
		e.PostTimestamp = t.UTC()
		s.dirty = true
	}
	s.entries[username] = e
}

// ProfileID returns the stored id of username, used to notice renamed profiles
func (s *LatestStamps) ProfileID(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[username].ProfileID
}

// Save writes the stamps atomically if anything changed
func (s *LatestStamps) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	data, err := yaml.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("failed to encode stamps: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create stamps directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".stamps-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary stamps file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write stamps: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close stamps file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace stamps file: %w", err)
	}
	s.dirty = false
	return nil
}
