package journal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

const (
	exportCursorPrefix = "offset="
	exportFileKey      = "file="
	exportPollInterval = 100 * time.Millisecond
)

type lineSpan struct {
	start int64
	end   int64
}

// exportSource reads a file of `journalctl -o json` lines. Only complete
// lines are visible; a trailing partial line is picked up once its newline
// arrives. Rotation is detected by inode change or truncation.
//
// Cursors have the form "offset=N;file=DEV:INODE". A cursor naming another
// file, or pointing past the end of a truncated one, seeks to the head: the
// file it referred to is gone and everything in the current one is new.
type exportSource struct {
	path     string
	file     *os.File
	info     os.FileInfo
	identity string
	matches  Matches
	parser   fastjson.Parser

	indexed bool
	scanned int64
	lines   []lineSpan
	pos     int
}

// OpenExport opens an export file.
func OpenExport(path string) (Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("export backend requires a source path")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat export file: %w", err)
	}
	return &exportSource{path: path, file: file, info: info, identity: fileIdentity(info), pos: -1}, nil
}

func (s *exportSource) Wait(timeout time.Duration) (Change, error) {
	deadline := time.Now().Add(timeout)
	for {
		change, err := s.poll()
		if err != nil || change != ChangeNone {
			return change, err
		}
		if !time.Now().Before(deadline) {
			return ChangeNone, nil
		}
		time.Sleep(min(exportPollInterval, time.Until(deadline)))
	}
}

func (s *exportSource) poll() (Change, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Rotated away and not yet recreated; keep reading the open handle.
			return ChangeNone, nil
		}
		return ChangeNone, fmt.Errorf("stat export file: %w", err)
	}
	if !os.SameFile(info, s.info) || info.Size() < s.scanned {
		return ChangeInvalidate, nil
	}
	if !s.indexed || info.Size() == s.scanned {
		return ChangeNone, nil
	}
	before := len(s.lines)
	if err := s.index(); err != nil {
		return ChangeNone, err
	}
	if len(s.lines) > before {
		return ChangeAppend, nil
	}
	return ChangeNone, nil
}

func (s *exportSource) ApplyMatches(matches Matches) error {
	s.matches = matches
	s.indexed = false
	s.scanned = 0
	s.lines = nil
	s.pos = -1
	return nil
}

func (s *exportSource) ensureIndex() error {
	if s.indexed {
		return nil
	}
	s.indexed = true
	return s.index()
}

// index scans complete lines past the last scanned offset and records the
// ones that satisfy the matches.
func (s *exportSource) index() error {
	reader := bufio.NewReader(io.NewSectionReader(s.file, s.scanned, 1<<62))
	offset := s.scanned
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("scan export file: %w", err)
		}
		start := offset
		offset += int64(len(line))
		s.scanned = offset
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		entry, perr := s.parse(line)
		if perr != nil || !s.matches.Matches(entry) {
			continue
		}
		s.lines = append(s.lines, lineSpan{start: start, end: offset})
	}
}

func (s *exportSource) Seek(pos Position) error {
	if err := s.ensureIndex(); err != nil {
		return err
	}
	switch {
	case pos.IsHead():
		s.pos = -1
		return nil
	case pos.IsTail():
		// Same landing spot as sd_journal_seek_tail: past the last entry.
		s.pos = len(s.lines)
		return nil
	}
	cursor, _ := pos.CursorValue()
	offset, identity, err := parseExportCursor(cursor)
	if err != nil {
		return err
	}
	if (identity != "" && s.identity != "" && identity != s.identity) || offset >= s.scanned {
		s.pos = -1
		return nil
	}
	i := sort.Search(len(s.lines), func(i int) bool { return s.lines[i].start >= offset })
	if i == len(s.lines) || s.lines[i].start != offset {
		return fmt.Errorf("%w: no entry at %s", ErrInvalidPosition, cursor)
	}
	s.pos = i
	return nil
}

func (s *exportSource) Move(offset int) error {
	if err := s.ensureIndex(); err != nil {
		return err
	}
	s.pos = max(-1, min(len(s.lines), s.pos+offset))
	return nil
}

func (s *exportSource) Next() (bool, error) {
	if err := s.ensureIndex(); err != nil {
		return false, err
	}
	if s.pos+1 >= len(s.lines) {
		if err := s.index(); err != nil {
			return false, err
		}
	}
	if s.pos+1 >= len(s.lines) {
		return false, nil
	}
	s.pos++
	return true, nil
}

func (s *exportSource) current() (lineSpan, error) {
	if s.pos < 0 || s.pos >= len(s.lines) {
		return lineSpan{}, errors.New("export source is not positioned on an entry")
	}
	return s.lines[s.pos], nil
}

func (s *exportSource) Entry() (*Entry, error) {
	span, err := s.current()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, span.end-span.start)
	if _, err := s.file.ReadAt(buf, span.start); err != nil {
		return nil, fmt.Errorf("read export entry: %w", err)
	}
	return s.parse(buf)
}

func (s *exportSource) Position() (Position, error) {
	span, err := s.current()
	if err != nil {
		return Position{}, err
	}
	cursor := exportCursorPrefix + strconv.FormatInt(span.start, 10)
	if s.identity != "" {
		cursor += ";" + exportFileKey + s.identity
	}
	return Cursor(cursor), nil
}

func (s *exportSource) Close() error {
	return s.file.Close()
}

// parseExportCursor splits a cursor into its offset and optional file
// identity. Cursors without a file part are accepted for any file.
func parseExportCursor(cursor string) (int64, string, error) {
	bad := fmt.Errorf("%w: %q is not an export cursor", ErrInvalidPosition, cursor)
	head, rest, _ := strings.Cut(strings.TrimSpace(cursor), ";")
	raw, ok := strings.CutPrefix(head, exportCursorPrefix)
	if !ok {
		return 0, "", bad
	}
	offset, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || offset < 0 {
		return 0, "", bad
	}
	var identity string
	if rest != "" {
		if identity, ok = strings.CutPrefix(rest, exportFileKey); !ok || identity == "" {
			return 0, "", bad
		}
	}
	return offset, identity, nil
}

// parse decodes one export line. Strings become field values, arrays of
// numbers are binary values, arrays of strings are repeated fields.
func (s *exportSource) parse(line []byte) (*Entry, error) {
	v, err := s.parser.ParseBytes(line)
	if err != nil {
		return nil, fmt.Errorf("parse export entry: %w", err)
	}
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("parse export entry: %w", err)
	}
	entry := &Entry{}
	obj.Visit(func(key []byte, val *fastjson.Value) {
		name := string(key)
		if name == FieldRealtimeTimestamp {
			entry.Realtime = parseRealtime(val)
			return
		}
		if isAddressField(name) {
			return
		}
		for _, value := range exportValues(val) {
			entry.Fields = append(entry.Fields, Field{Name: name, Value: value})
		}
	})
	return entry, nil
}

func parseRealtime(v *fastjson.Value) int64 {
	switch v.Type() {
	case fastjson.TypeString:
		raw, _ := v.StringBytes()
		n, _ := strconv.ParseInt(string(raw), 10, 64)
		return n
	case fastjson.TypeNumber:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

func exportValues(v *fastjson.Value) [][]byte {
	switch v.Type() {
	case fastjson.TypeString:
		raw, _ := v.StringBytes()
		return [][]byte{bytes.Clone(raw)}
	case fastjson.TypeNumber:
		return [][]byte{v.MarshalTo(nil)}
	case fastjson.TypeArray:
		items, _ := v.Array()
		if len(items) > 0 && items[0].Type() == fastjson.TypeNumber {
			out := make([]byte, 0, len(items))
			for _, item := range items {
				b, _ := item.Int()
				out = append(out, byte(b))
			}
			return [][]byte{out}
		}
		var values [][]byte
		for _, item := range items {
			values = append(values, exportValues(item)...)
		}
		return values
	default:
		return nil
	}
}
