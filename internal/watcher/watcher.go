package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"jtail/internal/filter"
	"jtail/internal/format"
	"jtail/internal/journal"
	"jtail/internal/logging"
	"jtail/internal/partial"
	"jtail/internal/position"
)

// DefaultIdleBackoff is the sleep after Next finds nothing new.
const DefaultIdleBackoff = time.Second

// Emitter receives completed entries.
type Emitter interface {
	Emit(tag string, timestampSeconds int64, entry *journal.Entry) error
}

// Options wires a Watcher. Reassembler, Formatter and Filter are optional.
type Options struct {
	Opener       journal.Opener
	Path         string
	Matches      journal.Matches
	ReadFromHead bool
	Tag          string
	Cursor       *position.Store
	Reassembler  *partial.Reassembler
	Formatter    *format.Formatter
	Filter       *filter.Expression
	Sink         Emitter
	IdleBackoff  time.Duration
	Logger       *slog.Logger
}

// Stats counts entries seen by the loop.
type Stats struct {
	Read          int64
	Emitted       int64
	Buffered      int64
	Filtered      int64
	Failed        int64
	Reinitialized int64
}

// Watcher tails one journal source.
type Watcher struct {
	opts   Options
	logger *slog.Logger

	state   atomic.Int32
	running atomic.Bool

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error

	source journal.Source

	read, emitted, buffered, filtered, failed, reinitialized atomic.Int64
}

// New returns an unstarted watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Opener == nil {
		return nil, errors.New("watcher requires a journal opener")
	}
	if opts.Sink == nil {
		return nil, errors.New("watcher requires a sink")
	}
	if opts.Cursor == nil {
		opts.Cursor = position.New("", opts.Logger)
	}
	if opts.IdleBackoff <= 0 {
		opts.IdleBackoff = DefaultIdleBackoff
	}
	return &Watcher{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "watcher"),
		done:   make(chan struct{}),
	}, nil
}

// Start takes the cursor and snapshot stores and launches the worker.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return errors.New("watcher already started")
	}
	if err := w.opts.Cursor.Start(); err != nil {
		return fmt.Errorf("start cursor store: %w", err)
	}
	if w.opts.Reassembler != nil {
		if err := w.opts.Reassembler.Open(); err != nil {
			_ = w.opts.Cursor.Shutdown()
			return err
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.started = true
	w.running.Store(true)
	go w.run(runCtx)
	return nil
}

// Stop clears the running flag, waits for the current iteration to finish,
// then runs the final fragment cleanup and releases both stores. It is safe to
// call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.started || w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	cancel := w.cancel
	w.mu.Unlock()

	w.running.Store(false)
	cancel()
	<-w.done

	var errs []error
	if w.opts.Reassembler != nil {
		if err := w.opts.Reassembler.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close partial buffer: %w", err))
		}
	}
	if err := w.opts.Cursor.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("close cursor store: %w", err))
	}
	return errors.Join(errs...)
}

// State reports the current lifecycle stage.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Done is closed when the worker exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Err returns the error that ended the worker, if any. It is meaningful once
// Done is closed.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Stats returns a snapshot of the loop counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Read:          w.read.Load(),
		Emitted:       w.emitted.Load(),
		Buffered:      w.buffered.Load(),
		Filtered:      w.filtered.Load(),
		Failed:        w.failed.Load(),
		Reinitialized: w.reinitialized.Load(),
	}
}

func (w *Watcher) setState(s State) {
	prev := State(w.state.Swap(int32(s)))
	if prev != s {
		w.logger.Debug("watcher state changed",
			logging.String(logging.FieldState, s.String()),
			logging.String("previous_state", prev.String()))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	err := w.loop(ctx)
	if w.source != nil {
		_ = w.source.Close()
		w.source = nil
	}
	w.setState(StateStopped)
	if err != nil {
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
		logging.ErrorWithContext(w.logger, "journal watcher stopped", "watcher_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restart jtail once the journal is readable; entries resume from the saved cursor"),
			logging.String(logging.FieldImpact, "no records are emitted until restart"),
		)
	}
}

func (w *Watcher) loop(ctx context.Context) error {
	w.setState(StateInitializing)
	if err := w.initialize(true); err != nil {
		return err
	}
	w.logger.Info("journal watcher streaming",
		logging.String(logging.FieldSourcePath, w.opts.Path),
		logging.String("matches", w.opts.Matches.String()),
		logging.Bool("reassembly", w.opts.Reassembler != nil),
	)
	for w.running.Load() {
		change, err := w.source.Wait(0)
		if err != nil {
			return fmt.Errorf("poll journal: %w", err)
		}
		if change == journal.ChangeInvalidate {
			w.setState(StateReinitializing)
			w.reinitialized.Add(1)
			if err := w.initialize(false); err != nil {
				return err
			}
			continue
		}

		ok, err := w.source.Next()
		if err != nil {
			return fmt.Errorf("advance journal: %w", err)
		}
		if !ok {
			w.idle(ctx)
			continue
		}
		entry, err := w.source.Entry()
		if err != nil {
			return fmt.Errorf("read journal entry: %w", err)
		}
		w.read.Add(1)
		w.dispatch(entry)

		pos, err := w.source.Position()
		if err != nil {
			return fmt.Errorf("read journal cursor: %w", err)
		}
		if err := w.opts.Cursor.Update(pos.Bytes()); err != nil {
			return fmt.Errorf("persist cursor: %w", err)
		}
	}
	return nil
}

func (w *Watcher) idle(ctx context.Context) {
	timer := time.NewTimer(w.opts.IdleBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// initialize (re)opens the source and seeks. The partial buffer is loaded
// only on the first pass; a reopen keeps what is in memory.
func (w *Watcher) initialize(first bool) error {
	if w.source != nil {
		_ = w.source.Close()
		w.source = nil
	}
	src, err := w.opts.Opener.Open(w.opts.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	w.source = src
	// sd-journal reports a spurious invalidation on the first wait after open.
	_, _ = src.Wait(0)

	if err := src.ApplyMatches(w.opts.Matches); err != nil {
		return fmt.Errorf("apply journal matches: %w", err)
	}
	if first && w.opts.Reassembler != nil {
		w.opts.Reassembler.Load()
	}

	w.setState(StateSeeking)
	if err := w.seek(src); err != nil {
		return err
	}
	w.setState(StateStreaming)
	return nil
}

func (w *Watcher) defaultPosition() journal.Position {
	if w.opts.ReadFromHead {
		return journal.Head
	}
	return journal.Tail
}

func (w *Watcher) seek(src journal.Source) error {
	if raw, ok := w.opts.Cursor.Current(); ok {
		if pos, ok := journal.ParsePosition(raw); ok {
			err := src.Seek(pos)
			if err == nil {
				w.logger.Debug("resumed from cursor", logging.String(logging.FieldCursor, pos.String()))
				return nil
			}
			logging.WarnWithContext(w.logger, "saved cursor rejected; falling back to default position", "cursor_invalid",
				logging.String(logging.FieldCursor, pos.String()),
				logging.String("fallback", w.defaultPosition().String()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the journal was vacuumed or replaced; run 'jtail cursor reset' to silence this"),
				logging.String(logging.FieldImpact, "entries between the saved cursor and the fallback position may be skipped or repeated"),
			)
		}
	}
	return w.seekDefault(src)
}

func (w *Watcher) seekDefault(src journal.Source) error {
	pos := w.defaultPosition()
	if err := src.Seek(pos); err != nil {
		return fmt.Errorf("seek journal %s: %w", pos, err)
	}
	if pos.IsTail() {
		// Positions the next Next on the newest entry instead of past it.
		if err := src.Move(-2); err != nil {
			return fmt.Errorf("step back from journal tail: %w", err)
		}
	}
	return nil
}

// dispatch routes one entry to the sink. Failures, including panics, are
// logged with the entry and swallowed so the cursor still advances.
func (w *Watcher) dispatch(entry *journal.Entry) {
	defer func() {
		if r := recover(); r != nil {
			w.failed.Add(1)
			w.logDispatchFailure(entry, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := w.handle(entry); err != nil {
		w.failed.Add(1)
		w.logDispatchFailure(entry, err)
	}
}

func (w *Watcher) handle(entry *journal.Entry) error {
	out := entry
	if w.opts.Reassembler != nil {
		var ok bool
		out, ok = w.opts.Reassembler.Process(entry)
		if !ok {
			w.buffered.Add(1)
			return nil
		}
	}
	out = w.opts.Formatter.Format(out)
	if w.opts.Filter.Enabled() {
		allow, err := w.opts.Filter.Allow(w.opts.Tag, out)
		if err != nil {
			w.logger.Debug("filter evaluation failed; record dropped",
				logging.String("filter", w.opts.Filter.String()),
				logging.Error(err))
		}
		if !allow {
			w.filtered.Add(1)
			return nil
		}
	}
	if err := w.opts.Sink.Emit(w.opts.Tag, out.TimestampSeconds(), out); err != nil {
		return fmt.Errorf("emit record: %w", err)
	}
	w.emitted.Add(1)
	return nil
}

func (w *Watcher) logDispatchFailure(entry *journal.Entry, err error) {
	attrs := []logging.Attr{
		logging.Error(err),
		logging.Int64("realtime_us", entry.Realtime),
		logging.String("message", truncate(string(entry.Message()), 256)),
		logging.Int("fields", entry.Len()),
		logging.String(logging.FieldErrorHint, "check the sink destination; the entry is skipped"),
		logging.String(logging.FieldImpact, "this record was not delivered"),
	}
	if id, ok := entry.ContainerID(); ok {
		attrs = append(attrs, logging.String(logging.FieldContainerID, id))
	}
	logging.WarnWithContext(w.logger, "failed to emit journal entry", "emit_failed", attrs...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
