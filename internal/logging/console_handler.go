package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleOutput is shared by a handler and every handler derived from it
// through WithAttrs or WithGroup.
type consoleOutput struct {
	mu        sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	addSource bool
	// lastInfo holds, per component, the last value printed for each label.
	lastInfo map[string]map[string]string
}

// prettyHandler writes a one-line header per record followed by indented
// detail bullets. Repeated info values for the same component are suppressed.
type prettyHandler struct {
	out *consoleOutput
	// preset holds WithAttrs attributes, already qualified by the groups that
	// were open when they were added.
	preset []kv
	prefix string
}

type kv struct {
	key   string
	value slog.Value
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{out: &consoleOutput{
		writer:    w,
		level:     lvl,
		addSource: addSource,
		lastInfo:  make(map[string]map[string]string),
	}}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.out.level.Level()
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.preset = slices.Clone(h.preset)
	for _, attr := range attrs {
		next.preset = appendAttr(next.preset, h.prefix, attr)
	}
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}

	fields := make([]kv, len(h.preset), len(h.preset)+record.NumAttrs())
	copy(fields, h.preset)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, attr)
		return true
	})

	head := recordHeader{time: record.Time, level: record.Level, message: strings.TrimSpace(record.Message)}
	fields = mergeDuplicateKeys(head.extract(fields))

	var buf bytes.Buffer
	buf.Grow(256 + len(fields)*32)

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	var src *slog.Source
	if h.out.addSource {
		src = record.Source()
	}
	head.write(&buf, src)
	if record.Level < slog.LevelInfo {
		writeDebugFields(&buf, fields)
	} else {
		h.out.writeInfoFields(&buf, head.component, record.Level, fields)
	}
	_, err := h.out.writer.Write(buf.Bytes())
	return err
}

// recordHeader is the first line of a console record.
type recordHeader struct {
	time      time.Time
	level     slog.Level
	component string
	container string
	message   string
}

// extract picks the component and container out of fields. The component
// moves into the header only; the container stays for debug output.
func (r *recordHeader) extract(fields []kv) []kv {
	kept := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			if r.component == "" {
				r.component = attrString(f.value)
			}
			continue
		case FieldContainerID:
			if r.container == "" {
				r.container = strings.TrimSpace(attrString(f.value))
			}
		}
		kept = append(kept, f)
	}
	return kept
}

func (r recordHeader) write(buf *bytes.Buffer, src *slog.Source) {
	ts := r.time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(r.level))
	if r.component != "" {
		buf.WriteString(" [" + r.component + "]")
	}
	if r.container != "" {
		buf.WriteString(" container " + shortContainerID(r.container))
	}
	buf.WriteString(" – ")
	if r.message == "" {
		buf.WriteString("(no message)")
	} else {
		buf.WriteString(r.message)
	}
	if src != nil && src.File != "" {
		buf.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
	}
}

func (o *consoleOutput) writeInfoFields(buf *bytes.Buffer, component string, level slog.Level, attrs []kv) {
	fields, hidden := selectInfoFields(attrs)
	fields = o.suppressRepeats(component, fields, level)
	buf.WriteByte('\n')
	for _, field := range fields {
		buf.WriteString("    - " + field.label + ": " + field.value + "\n")
	}
	switch {
	case hidden == 1:
		buf.WriteString("    + 1 more field hidden\n")
	case hidden > 1:
		buf.WriteString("    + " + strconv.Itoa(hidden) + " more fields hidden\n")
	}
}

func writeDebugFields(buf *bytes.Buffer, attrs []kv) {
	buf.WriteByte('\n')
	for _, f := range attrs {
		buf.WriteString("    " + f.key + ": " + formatValue(f.value) + "\n")
	}
}

// suppressRepeats drops info fields whose value matches the last one printed
// for the same component. Warnings and errors always print in full and
// refresh the remembered values.
func (o *consoleOutput) suppressRepeats(component string, fields []infoField, level slog.Level) []infoField {
	if component == "" || len(fields) == 0 {
		return fields
	}
	seen := o.lastInfo[component]
	if seen == nil {
		seen = make(map[string]string)
		o.lastInfo[component] = seen
	}
	out := fields[:0]
	for _, field := range fields {
		if level <= slog.LevelInfo && !alwaysShowLabel(field.label) {
			if prev, ok := seen[field.label]; ok && prev == field.value {
				continue
			}
		}
		seen[field.label] = field.value
		out = append(out, field)
	}
	return out
}

// shortContainerID trims a Docker id to the 12 characters `docker ps` shows.
func shortContainerID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// appendAttr flattens attr onto dst, joining group names with dots. Empty
// attributes and empty keys are dropped; an unnamed group is inlined.
func appendAttr(dst []kv, prefix string, attr slog.Attr) []kv {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, member := range value.Group() {
			dst = appendAttr(dst, prefix, member)
		}
		return dst
	}
	if attr.Key == "" {
		return dst
	}
	return append(dst, kv{key: prefix + attr.Key, value: value})
}

// mergeDuplicateKeys keeps each key at its first position with its last value.
func mergeDuplicateKeys(fields []kv) []kv {
	if len(fields) < 2 {
		return fields
	}
	index := make(map[string]int, len(fields))
	merged := fields[:0]
	for _, f := range fields {
		if i, dup := index[f.key]; dup {
			merged[i].value = f.value
			continue
		}
		index[f.key] = len(merged)
		merged = append(merged, f)
	}
	return merged
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
