package sink

import (
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/valyala/fastjson"

	"jtail/internal/config"
	"jtail/internal/journal"
)

// Emitter receives completed entries.
type Emitter interface {
	Emit(tag string, timestampSeconds int64, entry *journal.Entry) error
	Close() error
}

// New builds the sink selected by cfg.Output.Sink. stdout receives records for
// the stdout sink.
func New(cfg *config.Config, runID string, stdout io.Writer) (Emitter, error) {
	switch cfg.Output.Sink {
	case config.SinkStdout, "":
		return NewJSONLines(stdout), nil
	case config.SinkFile:
		return OpenFile(cfg.Output.FilePath, cfg.Output.Compress)
	case config.SinkSQLite:
		return OpenSQLite(cfg.Output.SQLitePath, runID)
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Output.Sink)
	}
}

// recordValue renders entry fields as a JSON object on the arena.
func recordValue(a *fastjson.Arena, entry *journal.Entry) *fastjson.Value {
	obj := a.NewObject()
	counts := make(map[string]int, len(entry.Fields))
	for _, f := range entry.Fields {
		counts[f.Name]++
	}
	for _, f := range entry.Fields {
		value := fieldValue(a, f.Value)
		if counts[f.Name] == 1 {
			obj.Set(f.Name, value)
			continue
		}
		arr := obj.Get(f.Name)
		if arr == nil {
			arr = a.NewArray()
			obj.Set(f.Name, arr)
		}
		items, _ := arr.Array()
		arr.SetArrayItem(len(items), value)
	}
	return obj
}

func fieldValue(a *fastjson.Arena, raw []byte) *fastjson.Value {
	if utf8.Valid(raw) {
		return a.NewStringBytes(raw)
	}
	arr := a.NewArray()
	for i, b := range raw {
		arr.SetArrayItem(i, a.NewNumberInt(int(b)))
	}
	return arr
}

// appendLine renders one `{"tag","time","record"}` line onto dst.
func appendLine(dst []byte, a *fastjson.Arena, tag string, ts int64, entry *journal.Entry) []byte {
	line := a.NewObject()
	line.Set("tag", a.NewString(tag))
	line.Set("time", a.NewNumberString(strconv.FormatInt(ts, 10)))
	line.Set("record", recordValue(a, entry))
	dst = line.MarshalTo(dst)
	return append(dst, '\n')
}
