package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/zstd"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/nodeiter"
)

const compressedSuffix = ".zst"

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// FileOptions configures a FileStore
type FileOptions struct {
	// Directory defaults to DefaultDirectory()
	Directory string
	Base      string
	Prefix    string
	Compress  bool
	Logger    logger.Logger
}

// FileStore keeps snapshots as files in one directory
type FileStore struct {
	dir      string
	base     string
	prefix   string
	compress bool
	log      logger.Logger
}

// NewFileStore creates the snapshot directory if needed
func NewFileStore(opts FileOptions) (*FileStore, error) {
	dir := opts.Directory
	if dir == "" {
		var err error
		if dir, err = DefaultDirectory(); err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "iterator"
	}

	return &FileStore{
		dir:      dir,
		base:     opts.Base,
		prefix:   prefix,
		compress: opts.Compress,
		log:      log,
	}, nil
}

// Directory returns the directory snapshots are written to
func (s *FileStore) Directory() string {
	return s.dir
}

// ForTarget returns a store sharing s's settings whose file names start with base
func (s *FileStore) ForTarget(base string) nodeiter.SnapshotStore {
	c := *s
	c.base = base
	return &c
}

// Close is a no-op
func (s *FileStore) Close() error { return nil }

// PathFor returns {base}_{prefix}_{magic}.json, with .zst appended when compressing
func (s *FileStore) PathFor(magic string) string {
	name := fmt.Sprintf("%s_%s_%s.json", sanitize(s.base), s.prefix, magic)
	if s.compress {
		name += compressedSuffix
	}
	return filepath.Join(s.dir, name)
}

func (s *FileStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat snapshot: %w", err)
}

// Load reads and unwraps a snapshot. Files ending in .zst are decompressed.
func (s *FileStore) Load(ctx context.Context, path string) (*nodeiter.FrozenIterator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if strings.HasSuffix(path, compressedSuffix) {
		if data, err = zstdDecoder.DecodeAll(data, nil); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeInvalidArgument, err, "corrupt compressed snapshot")
		}
	}
	return decode(data)
}

// Save writes the snapshot atomically: a temporary file in the same directory
// is synced and then renamed over path.
func (s *FileStore) Save(ctx context.Context, path string, frozen nodeiter.FrozenIterator) error {
	data, err := encode(frozen)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, compressedSuffix) {
		data = zstdEncoder.EncodeAll(data, nil)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	file, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot file: %w", err)
	}
	tempPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync snapshot file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}

	s.log.DebugWithFields("Snapshot saved", map[string]interface{}{
		"path":        path,
		"total_index": frozen.TotalIndex,
		"bytes":       len(data),
	})
	return nil
}

func (s *FileStore) Delete(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// sanitize keeps target names usable as file name components
func sanitize(base string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, base)
}

// DefaultDirectory returns the platform data directory for snapshots
func DefaultDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "igcrawler")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "igcrawler")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "igcrawler")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "igcrawler")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(dataDir, "resume"), nil
}
