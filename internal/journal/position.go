package journal

import (
	"errors"
	"strings"
)

// ErrInvalidPosition is returned by Seek when the source rejects a cursor.
var ErrInvalidPosition = errors.New("invalid journal position")

type positionKind int

const (
	positionCursor positionKind = iota
	positionHead
	positionTail
)

// Position is an opaque resume point. Besides cursors produced by a source it
// has two sentinels: Head (oldest available entry) and Tail (newest entry).
type Position struct {
	kind   positionKind
	cursor string
}

var (
	// Head positions before the oldest available entry.
	Head = Position{kind: positionHead}
	// Tail positions at the most recent entry. Readers must step back two
	// entries after seeking here, see the watcher.
	Tail = Position{kind: positionTail}
)

// Cursor wraps a source-produced cursor string.
func Cursor(value string) Position {
	return Position{kind: positionCursor, cursor: value}
}

// IsHead reports whether p is the Head sentinel.
func (p Position) IsHead() bool { return p.kind == positionHead }

// IsTail reports whether p is the Tail sentinel.
func (p Position) IsTail() bool { return p.kind == positionTail }

// CursorValue returns the cursor string and whether p is a cursor.
func (p Position) CursorValue() (string, bool) {
	if p.kind != positionCursor {
		return "", false
	}
	return p.cursor, true
}

func (p Position) String() string {
	switch p.kind {
	case positionHead:
		return "head"
	case positionTail:
		return "tail"
	default:
		return p.cursor
	}
}

// ParsePosition decodes a persisted cursor. Empty input yields false.
func ParsePosition(raw []byte) (Position, bool) {
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return Position{}, false
	}
	return Cursor(value), true
}

// Bytes encodes a cursor for persistence. Sentinels encode to nil.
func (p Position) Bytes() []byte {
	if p.kind != positionCursor {
		return nil
	}
	return []byte(p.cursor)
}
