//go:build linux && cgo

package journal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/sdjournal"
)

type systemdSource struct {
	j *sdjournal.Journal
}

func openSystemd(path string) (Source, error) {
	var (
		j   *sdjournal.Journal
		err error
	)
	if strings.TrimSpace(path) == "" {
		j, err = sdjournal.NewJournal()
	} else {
		j, err = sdjournal.NewJournalFromDir(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open journal %q: %w", path, err)
	}
	return &systemdSource{j: j}, nil
}

func (s *systemdSource) Wait(timeout time.Duration) (Change, error) {
	switch s.j.Wait(timeout) {
	case sdjournal.SD_JOURNAL_APPEND:
		return ChangeAppend, nil
	case sdjournal.SD_JOURNAL_INVALIDATE:
		return ChangeInvalidate, nil
	case sdjournal.SD_JOURNAL_NOP:
		return ChangeNone, nil
	default:
		return ChangeNone, fmt.Errorf("journal wait failed")
	}
}

func (s *systemdSource) ApplyMatches(matches Matches) error {
	s.j.FlushMatches()
	for i, group := range matches {
		if i > 0 {
			if err := s.j.AddDisjunction(); err != nil {
				return fmt.Errorf("add disjunction: %w", err)
			}
		}
		for _, match := range group {
			if err := s.j.AddMatch(match.String()); err != nil {
				return fmt.Errorf("add match %q: %w", match.String(), err)
			}
		}
	}
	return nil
}

func (s *systemdSource) Seek(pos Position) error {
	switch {
	case pos.IsHead():
		return s.j.SeekHead()
	case pos.IsTail():
		return s.j.SeekTail()
	}
	cursor, _ := pos.CursorValue()
	if err := s.j.SeekCursor(cursor); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	// sd_journal_seek_cursor leaves the handle so that next() returns the
	// cursor's own entry. Step onto it so the caller's Next moves past it; if
	// the entry was vacuumed, step back so the following entry is not lost.
	n, err := s.j.Next()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	if n == 0 {
		return nil
	}
	if err := s.j.TestCursor(cursor); err != nil {
		if _, err := s.j.Previous(); err != nil {
			return fmt.Errorf("step back after cursor seek: %w", err)
		}
	}
	return nil
}

func (s *systemdSource) Move(offset int) error {
	var err error
	switch {
	case offset < 0:
		_, err = s.j.PreviousSkip(uint64(-offset))
	case offset > 0:
		_, err = s.j.NextSkip(uint64(offset))
	}
	return err
}

func (s *systemdSource) Next() (bool, error) {
	n, err := s.j.Next()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *systemdSource) Entry() (*Entry, error) {
	raw, err := s.j.GetEntry()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(raw.Fields))
	for name := range raw.Fields {
		if isAddressField(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	entry := &Entry{Realtime: int64(raw.RealtimeTimestamp), Fields: make([]Field, 0, len(names))}
	for _, name := range names {
		entry.Fields = append(entry.Fields, Field{Name: name, Value: []byte(raw.Fields[name])})
	}
	return entry, nil
}

func (s *systemdSource) Position() (Position, error) {
	cursor, err := s.j.GetCursor()
	if err != nil {
		return Position{}, err
	}
	return Cursor(cursor), nil
}

func (s *systemdSource) Close() error {
	return s.j.Close()
}
