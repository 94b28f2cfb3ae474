package partial

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"jtail/internal/journal"
	"jtail/internal/logging"
	"jtail/internal/position"
)

var baseTime = time.Unix(1_700_000_000, 0)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func fragment(id, msg string, partial bool, started time.Time) *journal.Entry {
	fields := []journal.Field{
		journal.StringField(journal.FieldContainerID, id),
		journal.StringField(journal.FieldMessage, msg),
		journal.StringField(journal.FieldTrustedSourceRealtime, strconv.FormatInt(started.UnixMicro(), 10)),
	}
	if partial {
		fields = append(fields, journal.StringField(journal.FieldContainerPartial, "true"))
	}
	return journal.NewEntry(started.UnixMicro(), fields...)
}

func newTestReassembler(t *testing.T, path string, opts Options) *Reassembler {
	t.Helper()
	if opts.Retention == 0 {
		opts.Retention = time.Hour
	}
	if opts.Rand == nil {
		opts.Rand = func() float64 { return 0.5 }
	}
	if opts.Now == nil {
		opts.Now = (&clock{now: baseTime}).Now
	}
	r, err := New(position.New(path, logging.NewNop()), opts, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return r
}

func TestReassemblerJoinsFragments(t *testing.T) {
	r := newTestReassembler(t, "", Options{})
	defer r.Close()

	if _, ok := r.Process(fragment("c1", "ab", true, baseTime)); ok {
		t.Fatal("first fragment should be buffered")
	}
	if _, ok := r.Process(fragment("c1", "cd", true, baseTime)); ok {
		t.Fatal("second fragment should be buffered")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	out, ok := r.Process(fragment("c1", "ef", false, baseTime))
	if !ok {
		t.Fatal("closing fragment should release the entry")
	}
	if got := string(out.Message()); got != "abcdef" {
		t.Fatalf("message = %q, want abcdef", got)
	}
	if out.IsPartial() {
		t.Fatal("partial marker should be removed")
	}
	if r.Len() != 0 {
		t.Fatalf("buffer not emptied, Len = %d", r.Len())
	}
}

func TestReassemblerPassesThroughUnrelatedEntries(t *testing.T) {
	r := newTestReassembler(t, "", Options{})
	defer r.Close()

	r.Process(fragment("c1", "ab", true, baseTime))

	plain := journal.NewEntry(1, journal.StringField(journal.FieldMessage, "host line"))
	out, ok := r.Process(plain)
	if !ok || out != plain {
		t.Fatal("entry without container id should pass through unchanged")
	}

	standalone := fragment("c2", "whole", false, baseTime)
	out, ok = r.Process(standalone)
	if !ok || out != standalone {
		t.Fatal("standalone final entry should pass through unchanged")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestReassemblerKeepsOnePendingEntryPerContainer(t *testing.T) {
	r := newTestReassembler(t, "", Options{})
	defer r.Close()

	for i := 0; i < 5; i++ {
		r.Process(fragment("c1", "x", true, baseTime))
		r.Process(fragment("c2", "y", true, baseTime))
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	pending := r.List()
	if pending[0].ContainerID != "c1" || pending[0].Bytes != 5 {
		t.Fatalf("pending[0] = %+v", pending[0])
	}
}

func TestReassemblerCleanupHonoursRetention(t *testing.T) {
	c := &clock{now: baseTime}
	r := newTestReassembler(t, "", Options{
		Retention:          30 * time.Second,
		CleanupProbability: 1,
		Now:                c.Now,
	})
	defer r.Close()

	r.Process(fragment("old", "a", true, baseTime))
	r.Process(fragment("edge", "b", true, baseTime.Add(time.Second)))
	r.Process(fragment("fresh", "c", true, baseTime.Add(2*time.Second)))
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}

	// Eviction happens on the next processed entry of any container.
	c.now = baseTime.Add(31 * time.Second)
	r.Process(journal.NewEntry(0, journal.StringField(journal.FieldMessage, "tick")))

	got := map[string]bool{}
	for _, p := range r.List() {
		got[p.ContainerID] = true
	}
	if got["old"] {
		t.Fatal("entry aged 31s should be evicted")
	}
	if !got["edge"] || !got["fresh"] {
		t.Fatalf("entries within retention should be kept, got %v", got)
	}
}

func TestReassemblerCleanupFallsBackToRealtime(t *testing.T) {
	c := &clock{now: baseTime}
	r := newTestReassembler(t, "", Options{Retention: time.Minute, Now: c.Now})
	defer r.Close()

	e := journal.NewEntry(baseTime.Add(-2*time.Minute).UnixMicro(),
		journal.StringField(journal.FieldContainerID, "c1"),
		journal.StringField(journal.FieldContainerPartial, "true"),
		journal.StringField(journal.FieldSourceRealtime, "garbage"),
	)
	r.Process(e)
	if n := r.Cleanup(); n != 1 {
		t.Fatalf("Cleanup = %d, want 1", n)
	}
}

func TestReassemblerStaleFragmentWaitsForDrawOrClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partials.snapshot")
	c := &clock{now: baseTime}
	r := newTestReassembler(t, path, Options{
		Retention:          time.Second,
		CleanupProbability: 0.01,
		Now:                c.Now,
		Rand:               func() float64 { return 0.99 },
	})

	r.Process(fragment("c1", "a", true, baseTime))
	c.now = baseTime.Add(time.Hour)
	r.Process(fragment("c2", "b", false, baseTime))
	if r.Len() != 1 {
		t.Fatal("stale fragment should survive until a cleanup draw succeeds")
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if r.Len() != 0 {
		t.Fatal("Close should run a final cleanup")
	}

	reloaded := newTestReassembler(t, path, Options{Now: c.Now})
	defer reloaded.Close()
	if reloaded.Len() != 0 {
		t.Fatalf("flushed snapshot should be empty, Len = %d", reloaded.Len())
	}
}

func TestReassemblerSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partials.snapshot")
	c := &clock{now: baseTime.Add(time.Minute)}
	r := newTestReassembler(t, path, Options{Now: c.Now})
	binary := fragment("c1", "ab", true, baseTime)
	binary.Fields = append(binary.Fields, journal.Field{Name: "BLOB", Value: []byte{0, 0xff}})
	r.Process(binary)
	r.Process(fragment("c2", "zz", true, baseTime))
	r.Process(fragment("c1", "cd", true, baseTime))

	// Simulate a crash: read the snapshot without closing.
	other, err := New(position.New(path, logging.NewNop()), Options{Retention: time.Hour}, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	data, ok := r.store.Current()
	if !ok {
		t.Fatal("snapshot not written")
	}
	pending, err := other.codec.decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if got := string(pending["c1"].Message()); got != "abcd" {
		t.Fatalf("c1 message = %q", got)
	}
	if blob, _ := pending["c1"].Get("BLOB"); string(blob) != "\x00\xff" {
		t.Fatalf("binary field = %q", blob)
	}
	other.codec.close()
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	if r.Len() != 2 {
		t.Fatalf("Close within retention should keep both chains, Len = %d", r.Len())
	}

	reloaded := newTestReassembler(t, path, Options{Now: c.Now})
	defer reloaded.Close()
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded Len = %d, want 2", reloaded.Len())
	}
	out, ok := reloaded.Process(fragment("c1", "ef", false, baseTime))
	if !ok || string(out.Message()) != "abcdef" {
		t.Fatalf("resumed message = %v, %v", out, ok)
	}
}

func TestReassemblerCorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partials.snapshot")
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := newTestReassembler(t, path, Options{})
	defer r.Close()
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}
}

func TestReassemblerClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partials.snapshot")
	r := newTestReassembler(t, path, Options{})
	r.Process(fragment("c1", "ab", true, baseTime))
	if err := r.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	_ = r.Close()

	reloaded := newTestReassembler(t, path, Options{})
	defer reloaded.Close()
	if reloaded.Len() != 0 {
		t.Fatal("cleared buffer should stay empty after reload")
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New(nil, Options{}, nil); err == nil {
		t.Fatal("expected error for zero retention")
	}
	if _, err := New(nil, Options{Retention: time.Second, CleanupProbability: 1.5}, nil); err == nil {
		t.Fatal("expected error for probability above 1")
	}
	if _, err := New(nil, Options{Retention: time.Second, CleanupProbability: math.NaN()}, nil); err == nil {
		t.Fatal("expected error for NaN probability")
	}
}

func TestInspectReadsLockedSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partials.snapshot")
	r := newTestReassembler(t, path, Options{})
	defer r.Close()
	r.Process(fragment("c2", "later", true, baseTime))
	r.Process(fragment("c1", "first", true, baseTime))

	pending, err := Inspect(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(pending) != 2 || pending[0].ContainerID != "c1" || pending[1].Bytes != 5 {
		t.Fatalf("pending = %+v", pending)
	}
	if !pending[0].Started.Equal(baseTime) {
		t.Fatalf("Started = %s", pending[0].Started)
	}

	if missing, err := Inspect(filepath.Join(t.TempDir(), "none"), nil); err != nil || missing != nil {
		t.Fatalf("missing snapshot = %v, %v", missing, err)
	}
}
