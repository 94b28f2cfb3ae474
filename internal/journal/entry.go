package journal

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// Well-known fields written by the Docker journald log driver.
const (
	FieldMessage                     = "MESSAGE"
	FieldContainerID                 = "CONTAINER_ID"
	FieldContainerPartial            = "CONTAINER_PARTIAL_MESSAGE"
	FieldSourceRealtime              = "SOURCE_REALTIME_TIMESTAMP"
	FieldTrustedSourceRealtime       = "_SOURCE_REALTIME_TIMESTAMP"
	FieldRealtimeTimestamp           = "__REALTIME_TIMESTAMP"
	FieldCursor                      = "__CURSOR"
	partialMessageValue              = "true"
	addressFieldPrefix               = "__"
	microsecondsPerSecond      int64 = 1_000_000
)

// Field is a single journal field. Values are raw bytes because journal
// fields may carry binary data.
type Field struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

// Entry is one journal record: its realtime timestamp in microseconds and its
// data fields in the order the source produced them. A field name may repeat.
type Entry struct {
	Realtime int64   `json:"realtime"`
	Fields   []Field `json:"fields"`
}

// NewEntry builds an entry from a realtime timestamp and fields.
func NewEntry(realtime int64, fields ...Field) *Entry {
	return &Entry{Realtime: realtime, Fields: append([]Field(nil), fields...)}
}

// StringField is shorthand for a text field.
func StringField(name, value string) Field {
	return Field{Name: name, Value: []byte(value)}
}

// Get returns the first value stored under name.
func (e *Entry) Get(name string) ([]byte, bool) {
	if e == nil {
		return nil, false
	}
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// GetString returns the first value stored under name as text.
func (e *Entry) GetString(name string) (string, bool) {
	value, ok := e.Get(name)
	if !ok {
		return "", false
	}
	return string(value), true
}

// Set replaces the first value stored under name, or appends the field.
func (e *Entry) Set(name string, value []byte) {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			e.Fields[i].Value = value
			return
		}
	}
	e.Fields = append(e.Fields, Field{Name: name, Value: value})
}

// Delete removes every field stored under name.
func (e *Entry) Delete(name string) {
	kept := e.Fields[:0]
	for _, f := range e.Fields {
		if f.Name != name {
			kept = append(kept, f)
		}
	}
	e.Fields = kept
}

// Len reports the number of fields.
func (e *Entry) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Fields)
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := &Entry{Realtime: e.Realtime, Fields: make([]Field, len(e.Fields))}
	for i, f := range e.Fields {
		out.Fields[i] = Field{Name: f.Name, Value: bytes.Clone(f.Value)}
	}
	return out
}

// Time converts the realtime timestamp.
func (e *Entry) Time() time.Time {
	return time.UnixMicro(e.Realtime)
}

// TimestampSeconds is the realtime timestamp truncated to whole seconds.
func (e *Entry) TimestampSeconds() int64 {
	return e.Realtime / microsecondsPerSecond
}

// ContainerID returns the container identifier. Blank values count as absent.
func (e *Entry) ContainerID() (string, bool) {
	id, ok := e.GetString(FieldContainerID)
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// IsPartial reports whether the entry is a fragment of a longer message.
func (e *Entry) IsPartial() bool {
	value, ok := e.GetString(FieldContainerPartial)
	return ok && strings.EqualFold(strings.TrimSpace(value), partialMessageValue)
}

// ClearPartial removes the partial marker.
func (e *Entry) ClearPartial() {
	e.Delete(FieldContainerPartial)
}

// Message returns the MESSAGE field.
func (e *Entry) Message() []byte {
	value, _ := e.Get(FieldMessage)
	return value
}

// AppendMessage concatenates more onto the MESSAGE field.
func (e *Entry) AppendMessage(more []byte) {
	current := e.Message()
	joined := make([]byte, 0, len(current)+len(more))
	joined = append(joined, current...)
	joined = append(joined, more...)
	e.Set(FieldMessage, joined)
}

// SourceTimestamp returns the source realtime timestamp in microseconds,
// preferring the trusted underscore-prefixed field.
func (e *Entry) SourceTimestamp() (int64, bool) {
	for _, name := range []string{FieldTrustedSourceRealtime, FieldSourceRealtime} {
		raw, ok := e.GetString(name)
		if !ok {
			continue
		}
		value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			continue
		}
		return value, true
	}
	return 0, false
}

func isAddressField(name string) bool {
	return strings.HasPrefix(name, addressFieldPrefix)
}
