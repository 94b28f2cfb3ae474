package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/valyala/fastjson"
	_ "modernc.org/sqlite"

	"jtail/internal/journal"
)

// SQLite stores records in a local database, one row per record.
type SQLite struct {
	mu    sync.Mutex
	db    *sql.DB
	path  string
	runID string
	arena fastjson.Arena
	buf   []byte
	now   func() time.Time
}

// OpenSQLite opens or creates the database at path and applies migrations.
func OpenSQLite(path, runID string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sink directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer; more connections only contend for the lock.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db, path: path, runID: runID, now: time.Now}, nil
}

func (s *SQLite) Emit(tag string, timestampSeconds int64, entry *journal.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arena.Reset()
	s.buf = recordValue(&s.arena, entry).MarshalTo(s.buf[:0])
	_, err := s.db.Exec(
		`INSERT INTO records (run_id, tag, time, record_json, emitted_at) VALUES (?, ?, ?, ?, ?)`,
		s.runID,
		tag,
		timestampSeconds,
		string(s.buf),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
