package position

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"jtail/internal/logging"
)

// ErrLocked is returned by Start when another process holds the store.
var ErrLocked = errors.New("position store is locked by another process")

// Store is a durable single-slot value.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	lock    *flock.Flock
	started bool
}

// New returns a store for path. An empty path yields a no-op store.
func New(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logging.NewComponentLogger(logger, "position"),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Start creates the parent directory and backing file if absent and takes the
// store lock. The lock is held until Shutdown.
func (s *Store) Start() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create position directory: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire position lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, s.path)
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("create position file: %w", err)
	}
	_ = file.Close()

	s.lock = lock
	s.started = true
	s.logger.Debug("position store started", logging.String("position_path", s.path))
	return nil
}

// Current returns the last persisted value. Absent, empty, and unreadable
// files all report no value; read failures are logged.
func (s *Store) Current() ([]byte, bool) {
	if s.path == "" {
		return nil, false
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(s.logger, "position file unreadable; treating as empty", "position_read_failed",
				logging.String("position_path", s.path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check file permissions on the state directory"),
				logging.String(logging.FieldImpact, "reading resumes from the configured default position"),
			)
		}
		return nil, false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false
	}
	return data, true
}

// Update replaces the persisted value.
func (s *Store) Update(value []byte) error {
	if s.path == "" {
		return nil
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}
	if _, err := tmp.Write(value); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("sync position directory: %w", err)
	}
	return nil
}

// syncDir flushes dir's entries so a completed rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return err
	}
	return d.Close()
}

// Clear persists an empty value.
func (s *Store) Clear() error {
	return s.Update(nil)
}

// Shutdown releases the store lock. It is safe to call more than once.
func (s *Store) Shutdown() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	lock := s.lock
	s.lock = nil
	if err := lock.Unlock(); err != nil {
		return fmt.Errorf("release position lock: %w", err)
	}
	return nil
}
