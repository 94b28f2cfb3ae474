package journal

import (
	"fmt"
	"strings"
	"time"
)

// Change is the outcome of Source.Wait.
type Change int

const (
	// ChangeNone means nothing happened within the timeout.
	ChangeNone Change = iota
	// ChangeAppend means new entries were written.
	ChangeAppend
	// ChangeInvalidate means the handle must be reopened (rotation, vacuum).
	ChangeInvalidate
)

func (c Change) String() string {
	switch c {
	case ChangeAppend:
		return "append"
	case ChangeInvalidate:
		return "invalidate"
	default:
		return "none"
	}
}

// Source is a sequential, cursor-addressable log source.
//
// After Seek(cursor) the next call to Next yields the first entry after the
// cursor's entry. After Seek(Head) it yields the oldest entry. After
// Seek(Tail) followed by Move(-2) it yields the newest entry.
type Source interface {
	Wait(timeout time.Duration) (Change, error)
	ApplyMatches(matches Matches) error
	Seek(pos Position) error
	Move(offset int) error
	Next() (bool, error)
	Entry() (*Entry, error)
	Position() (Position, error)
	Close() error
}

// Opener opens a Source for a path.
type Opener interface {
	Open(path string) (Source, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Source, error)

// Open calls f.
func (f OpenerFunc) Open(path string) (Source, error) { return f(path) }

// Backend names accepted by NewOpener.
const (
	BackendSystemd = "systemd"
	BackendExport  = "export"
)

// NewOpener returns the opener for a configured backend.
func NewOpener(backend string) (Opener, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendSystemd, "":
		return OpenerFunc(openSystemd), nil
	case BackendExport:
		return OpenerFunc(OpenExport), nil
	default:
		return nil, fmt.Errorf("journal backend: unsupported value %q", backend)
	}
}
