package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"

	"jtail/internal/journal"
)

// JSONLines writes one JSON object per record.
type JSONLines struct {
	mu      sync.Mutex
	w       io.Writer
	encoder *zstd.Encoder
	file    *os.File
	arena   fastjson.Arena
	buf     []byte
}

// NewJSONLines writes records to w. Close does not close w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w}
}

// OpenFile appends records to path, creating it if needed. With compress the
// file is a zstd stream; each record ends a zstd block so readers see it
// without waiting for Close.
func OpenFile(path string, compress bool) (*JSONLines, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sink directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sink file: %w", err)
	}
	sink := &JSONLines{w: file, file: file}
	if compress {
		enc, err := zstd.NewWriter(file, zstd.WithEncoderConcurrency(1))
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		sink.encoder = enc
		sink.w = enc
	}
	return sink, nil
}

func (s *JSONLines) Emit(tag string, timestampSeconds int64, entry *journal.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arena.Reset()
	s.buf = appendLine(s.buf[:0], &s.arena, tag, timestampSeconds, entry)
	if _, err := s.w.Write(s.buf); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if s.encoder != nil {
		if err := s.encoder.Flush(); err != nil {
			return fmt.Errorf("flush compressed record: %w", err)
		}
	}
	return nil
}

func (s *JSONLines) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	if s.encoder != nil {
		firstErr = s.encoder.Close()
		s.encoder = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.file = nil
	}
	return firstErr
}
