package journal

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Match is a FIELD=value predicate.
type Match struct {
	Field string
	Value string
}

func (m Match) String() string {
	return m.Field + "=" + m.Value
}

// MatchGroup is a conjunction of matches.
type MatchGroup []Match

// Matches is a disjunction of groups. An empty set matches everything.
type Matches []MatchGroup

// ParseMatch parses "FIELD=value".
func ParseMatch(raw string) (Match, error) {
	field, value, ok := strings.Cut(strings.TrimSpace(raw), "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return Match{}, fmt.Errorf("match %q: expected FIELD=value", raw)
	}
	return Match{Field: field, Value: value}, nil
}

// MatchesFromTables converts configured match tables. Keys inside a table are
// ANDed and sorted for a stable order; tables are ORed.
func MatchesFromTables(tables []map[string]string) (Matches, error) {
	out := make(Matches, 0, len(tables))
	for i, table := range tables {
		if len(table) == 0 {
			continue
		}
		keys := make([]string, 0, len(table))
		for key := range table {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		group := make(MatchGroup, 0, len(keys))
		for _, key := range keys {
			field := strings.TrimSpace(key)
			if field == "" || strings.Contains(field, "=") {
				return nil, fmt.Errorf("matches[%d]: invalid field name %q", i, key)
			}
			group = append(group, Match{Field: field, Value: table[key]})
		}
		out = append(out, group)
	}
	return out, nil
}

// Matches reports whether e satisfies the set.
func (m Matches) Matches(e *Entry) bool {
	if len(m) == 0 {
		return true
	}
	for _, group := range m {
		if group.matches(e) {
			return true
		}
	}
	return false
}

func (g MatchGroup) matches(e *Entry) bool {
	for _, match := range g {
		if !entryHasValue(e, match.Field, match.Value) {
			return false
		}
	}
	return true
}

func entryHasValue(e *Entry, name, value string) bool {
	for _, f := range e.Fields {
		if f.Name == name && bytes.Equal(f.Value, []byte(value)) {
			return true
		}
	}
	return false
}

func (m Matches) String() string {
	parts := make([]string, 0, len(m))
	for _, group := range m {
		terms := make([]string, 0, len(group))
		for _, match := range group {
			terms = append(terms, match.String())
		}
		parts = append(parts, strings.Join(terms, " "))
	}
	return strings.Join(parts, " + ")
}
