// Package format normalizes journal field names before emission.
package format

import (
	"strings"

	"jtail/internal/journal"
)

// Formatter rewrites entries for the downstream sink.
type Formatter struct {
	stripUnderscores bool
}

// New returns a formatter. With strip disabled Format is the identity.
func New(stripUnderscores bool) *Formatter {
	return &Formatter{stripUnderscores: stripUnderscores}
}

// Format returns entry with every field name's leading underscores removed.
// When two names collapse to the same result the later value wins and keeps
// the earlier field's position. Names made only of underscores are left as is.
func (f *Formatter) Format(entry *journal.Entry) *journal.Entry {
	if f == nil || !f.stripUnderscores || entry == nil {
		return entry
	}
	out := &journal.Entry{Realtime: entry.Realtime, Fields: make([]journal.Field, 0, len(entry.Fields))}
	slots := make(map[string]int, len(entry.Fields))
	for _, field := range entry.Fields {
		name := StripName(field.Name)
		if i, ok := slots[name]; ok {
			out.Fields[i].Value = field.Value
			continue
		}
		slots[name] = len(out.Fields)
		out.Fields = append(out.Fields, journal.Field{Name: name, Value: field.Value})
	}
	return out
}

// StripName removes leading underscores from name.
func StripName(name string) string {
	stripped := strings.TrimLeft(name, "_")
	if stripped == "" {
		return name
	}
	return stripped
}
