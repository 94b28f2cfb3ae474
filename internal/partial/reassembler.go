package partial

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"jtail/internal/journal"
	"jtail/internal/logging"
	"jtail/internal/position"
)

// Options tunes eviction. Now and Rand default to the wall clock and
// math/rand; tests replace them.
type Options struct {
	Retention          time.Duration
	CleanupProbability float64
	Now                func() time.Time
	Rand               func() float64
}

// Pending describes one buffered fragment chain.
type Pending struct {
	ContainerID string
	Started     time.Time
	Age         time.Duration
	Bytes       int
	Entry       *journal.Entry
}

// Reassembler joins container message fragments. It is not safe for
// concurrent use; the watcher's worker goroutine owns it.
type Reassembler struct {
	store       *position.Store
	logger      *slog.Logger
	codec       *codec
	retention   time.Duration
	probability float64
	now         func() time.Time
	rand        func() float64
	pending     map[string]*journal.Entry
	closed      bool
}

// New returns a reassembler persisting through store.
func New(store *position.Store, opts Options, logger *slog.Logger) (*Reassembler, error) {
	if store == nil {
		store = position.New("", logger)
	}
	if opts.Retention <= 0 {
		return nil, fmt.Errorf("partial retention must be positive, got %s", opts.Retention)
	}
	if p := opts.CleanupProbability; math.IsNaN(p) || p < 0 || p > 1 {
		return nil, fmt.Errorf("partial cleanup probability must be between 0 and 1, got %v", opts.CleanupProbability)
	}
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	return &Reassembler{
		store:       store,
		logger:      logging.NewComponentLogger(logger, "partial"),
		codec:       c,
		retention:   opts.Retention,
		probability: opts.CleanupProbability,
		now:         opts.Now,
		rand:        opts.Rand,
		pending:     make(map[string]*journal.Entry),
	}, nil
}

// Open takes the snapshot store without loading it.
func (r *Reassembler) Open() error {
	if err := r.store.Start(); err != nil {
		return fmt.Errorf("start partial snapshot store: %w", err)
	}
	return nil
}

// Start opens the snapshot store and loads any saved fragments.
func (r *Reassembler) Start() error {
	if err := r.Open(); err != nil {
		return err
	}
	r.Load()
	return nil
}

// Load replaces the in-memory buffer with the persisted snapshot. A missing
// snapshot yields an empty buffer; a corrupt one is logged and discarded.
func (r *Reassembler) Load() {
	r.pending = make(map[string]*journal.Entry)
	data, ok := r.store.Current()
	if !ok {
		return
	}
	pending, err := r.codec.decode(data)
	if err != nil {
		logging.WarnWithContext(r.logger, "partial snapshot unreadable; starting empty", "partial_snapshot_corrupt",
			logging.String("snapshot_path", r.store.Path()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'jtail partials clear' if this repeats"),
			logging.String(logging.FieldImpact, "fragments buffered before the restart are lost"),
		)
		return
	}
	r.pending = pending
	r.logger.Debug("partial snapshot loaded",
		logging.Int("pending", len(pending)),
		logging.String("snapshot_path", r.store.Path()))
}

// Process routes one entry through reassembly. It returns the entry to emit,
// or false when the entry was buffered as a fragment.
func (r *Reassembler) Process(entry *journal.Entry) (*journal.Entry, bool) {
	out, emit, mutated := r.route(entry)
	if r.rand() <= r.probability && r.Cleanup() > 0 {
		mutated = true
	}
	if mutated {
		r.persist()
	}
	return out, emit
}

func (r *Reassembler) route(entry *journal.Entry) (out *journal.Entry, emit, mutated bool) {
	id, ok := entry.ContainerID()
	if !ok {
		return entry, true, false
	}
	pending, buffered := r.pending[id]
	if entry.IsPartial() {
		if buffered {
			pending.AppendMessage(entry.Message())
		} else {
			r.pending[id] = entry
		}
		return nil, false, true
	}
	if !buffered {
		return entry, true, false
	}
	pending.AppendMessage(entry.Message())
	pending.ClearPartial()
	delete(r.pending, id)
	return pending, true, true
}

// Cleanup evicts pending entries older than the retention and returns how
// many were removed. An entry exactly at the retention is kept.
func (r *Reassembler) Cleanup() int {
	now := r.now()
	evicted := 0
	for id, entry := range r.pending {
		age := now.Sub(startedAt(entry))
		if age <= r.retention {
			continue
		}
		delete(r.pending, id)
		evicted++
		logging.WarnWithContext(r.logger, "stale partial message dropped", "partial_evicted",
			logging.String(logging.FieldAlert, "record_dropped"),
			logging.String(logging.FieldContainerID, id),
			logging.Duration("age", age),
			logging.Duration("retention", r.retention),
			logging.Int("message_bytes", len(entry.Message())),
			logging.String(logging.FieldErrorHint, "the container never sent the closing fragment; raise partials.retention_seconds if lines are long-lived"),
			logging.String(logging.FieldImpact, "the buffered fragments are discarded without being emitted"),
		)
	}
	return evicted
}

// startedAt is the fragment's source timestamp, or its journal realtime
// timestamp when the source did not record one.
func startedAt(entry *journal.Entry) time.Time {
	if us, ok := entry.SourceTimestamp(); ok {
		return time.UnixMicro(us)
	}
	return entry.Time()
}

func (r *Reassembler) persist() {
	data, err := r.codec.encode(r.pending)
	if err == nil {
		err = r.store.Update(data)
	}
	if err != nil {
		logging.WarnWithContext(r.logger, "partial snapshot not saved", "partial_snapshot_failed",
			logging.String("snapshot_path", r.store.Path()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the state directory"),
			logging.String(logging.FieldImpact, "buffered fragments survive only while the process runs"),
		)
	}
}

// Len reports how many containers have a pending fragment chain.
func (r *Reassembler) Len() int {
	return len(r.pending)
}

// List returns the pending chains ordered by container id.
func (r *Reassembler) List() []Pending {
	return describe(r.pending, r.now())
}

func describe(pending map[string]*journal.Entry, now time.Time) []Pending {
	out := make([]Pending, 0, len(pending))
	for id, entry := range pending {
		started := startedAt(entry)
		out = append(out, Pending{
			ContainerID: id,
			Started:     started,
			Age:         now.Sub(started),
			Bytes:       len(entry.Message()),
			Entry:       entry.Clone(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContainerID < out[j].ContainerID })
	return out
}

// Clear drops every pending chain and persists the empty buffer.
func (r *Reassembler) Clear() error {
	r.pending = make(map[string]*journal.Entry)
	data, err := r.codec.encode(r.pending)
	if err != nil {
		return err
	}
	return r.store.Update(data)
}

// Close runs a final cleanup, flushes the snapshot, and releases the store.
func (r *Reassembler) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.Cleanup()
	r.persist()
	r.codec.close()
	return r.store.Shutdown()
}
