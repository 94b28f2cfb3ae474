// Package journaltest provides an in-memory journal for tests.
package journaltest

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"jtail/internal/journal"
)

// Journal is an append-only in-memory journal. Sources opened from it follow
// sd-journal positioning: Seek(Tail) lands past the newest entry and Seek to a
// cursor lands on that entry.
type Journal struct {
	mu         sync.Mutex
	entries    []*journal.Entry
	generation int
	opens      int
	spurious   bool
	nextErr    error
	sources    []*source
}

// New returns an empty journal.
func New() *Journal {
	return &Journal{}
}

// SpuriousFirstInvalidate makes the first Wait on every new source report
// ChangeInvalidate, as sd-journal does right after opening.
func (j *Journal) SpuriousFirstInvalidate() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.spurious = true
}

// Append adds entries.
func (j *Journal) Append(entries ...*journal.Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entries...)
}

// AppendMessages appends entries carrying only MESSAGE, with realtime set to
// the entry index in seconds.
func (j *Journal) AppendMessages(messages ...string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, msg := range messages {
		realtime := int64(len(j.entries)+1) * int64(time.Second/time.Microsecond)
		j.entries = append(j.entries, journal.NewEntry(realtime, journal.StringField(journal.FieldMessage, msg)))
	}
}

// Invalidate makes every open source report ChangeInvalidate on its next Wait.
func (j *Journal) Invalidate() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.generation++
}

// FailNext makes the next Next call on any source return err.
func (j *Journal) FailNext(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextErr = err
}

// Opens reports how many sources were opened.
func (j *Journal) Opens() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.opens
}

// OpenSources reports how many sources are currently open.
func (j *Journal) OpenSources() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	count := 0
	for _, s := range j.sources {
		if !s.closed {
			count++
		}
	}
	return count
}

// Opener returns an opener over the journal. The path is ignored.
func (j *Journal) Opener() journal.Opener {
	return journal.OpenerFunc(func(string) (journal.Source, error) {
		j.mu.Lock()
		defer j.mu.Unlock()
		j.opens++
		s := &source{j: j, pos: -1, generation: j.generation, firstWait: j.spurious}
		j.sources = append(j.sources, s)
		return s, nil
	})
}

// CursorFor returns the cursor the journal assigns to the entry at index i.
func CursorFor(i int) string {
	return "seq=" + strconv.Itoa(i)
}

type source struct {
	j          *Journal
	matches    journal.Matches
	pos        int
	seen       int
	generation int
	firstWait  bool
	closed     bool
}

// visible returns indexes of entries that satisfy the matches. Callers hold j.mu.
func (s *source) visible() []int {
	out := make([]int, 0, len(s.j.entries))
	for i, e := range s.j.entries {
		if s.matches.Matches(e) {
			out = append(out, i)
		}
	}
	return out
}

func (s *source) Wait(time.Duration) (journal.Change, error) {
	s.j.mu.Lock()
	defer s.j.mu.Unlock()
	if s.firstWait {
		s.firstWait = false
		return journal.ChangeInvalidate, nil
	}
	if s.generation != s.j.generation {
		s.generation = s.j.generation
		return journal.ChangeInvalidate, nil
	}
	if n := len(s.j.entries); n > s.seen {
		s.seen = n
		return journal.ChangeAppend, nil
	}
	return journal.ChangeNone, nil
}

func (s *source) ApplyMatches(matches journal.Matches) error {
	s.j.mu.Lock()
	defer s.j.mu.Unlock()
	s.matches = matches
	return nil
}

func (s *source) Seek(pos journal.Position) error {
	s.j.mu.Lock()
	defer s.j.mu.Unlock()
	visible := s.visible()
	switch {
	case pos.IsHead():
		s.pos = -1
		return nil
	case pos.IsTail():
		s.pos = len(visible)
		return nil
	}
	cursor, _ := pos.CursorValue()
	raw, ok := strings.CutPrefix(cursor, "seq=")
	if !ok {
		return fmt.Errorf("%w: %q", journal.ErrInvalidPosition, cursor)
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", journal.ErrInvalidPosition, cursor)
	}
	for i, idx := range visible {
		if idx == index {
			s.pos = i
			return nil
		}
	}
	return fmt.Errorf("%w: %q not found", journal.ErrInvalidPosition, cursor)
}

func (s *source) Move(offset int) error {
	s.j.mu.Lock()
	defer s.j.mu.Unlock()
	s.pos = max(-1, min(len(s.visible()), s.pos+offset))
	return nil
}

func (s *source) Next() (bool, error) {
	s.j.mu.Lock()
	defer s.j.mu.Unlock()
	if err := s.j.nextErr; err != nil {
		s.j.nextErr = nil
		return false, err
	}
	if s.pos+1 >= len(s.visible()) {
		return false, nil
	}
	s.pos++
	return true, nil
}

func (s *source) Entry() (*journal.Entry, error) {
	s.j.mu.Lock()
	defer s.j.mu.Unlock()
	visible := s.visible()
	if s.pos < 0 || s.pos >= len(visible) {
		return nil, fmt.Errorf("not positioned on an entry")
	}
	return s.j.entries[visible[s.pos]].Clone(), nil
}

func (s *source) Position() (journal.Position, error) {
	s.j.mu.Lock()
	defer s.j.mu.Unlock()
	visible := s.visible()
	if s.pos < 0 || s.pos >= len(visible) {
		return journal.Position{}, fmt.Errorf("not positioned on an entry")
	}
	return journal.Cursor(CursorFor(visible[s.pos])), nil
}

func (s *source) Close() error {
	s.j.mu.Lock()
	defer s.j.mu.Unlock()
	s.closed = true
	return nil
}
