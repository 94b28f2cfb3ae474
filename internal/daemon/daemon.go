package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"jtail/internal/config"
	"jtail/internal/filter"
	"jtail/internal/format"
	"jtail/internal/journal"
	"jtail/internal/logging"
	"jtail/internal/partial"
	"jtail/internal/position"
	"jtail/internal/sink"
	"jtail/internal/watcher"
)

// Daemon owns one watcher and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	watcher *watcher.Watcher
	sink    sink.Emitter
	partial *partial.Reassembler
	logPath string

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	State        watcher.State
	Stats        watcher.Stats
	Uptime       time.Duration
	CursorPath   string
	SnapshotPath string
	LockFilePath string
	LogPath      string
}

// New constructs a daemon tailing the configured source into emitter.
func New(cfg *config.Config, logger *slog.Logger, opener journal.Opener, emitter sink.Emitter, logPath string) (*Daemon, error) {
	if cfg == nil || logger == nil || opener == nil || emitter == nil {
		return nil, errors.New("daemon requires config, logger, journal opener, and sink")
	}

	matches, err := journal.MatchesFromTables(cfg.Source.Matches)
	if err != nil {
		return nil, fmt.Errorf("source matches: %w", err)
	}
	expr, err := filter.Compile(cfg.Output.Filter)
	if err != nil {
		return nil, err
	}

	var reassembler *partial.Reassembler
	if cfg.Partials.Enabled {
		reassembler, err = partial.New(
			position.New(cfg.Partials.SnapshotPath, logger),
			partial.Options{
				Retention:          cfg.PartialRetention(),
				CleanupProbability: cfg.Partials.CleanupProbability,
			},
			logger,
		)
		if err != nil {
			return nil, err
		}
	}

	w, err := watcher.New(watcher.Options{
		Opener:       opener,
		Path:         cfg.Source.Path,
		Matches:      matches,
		ReadFromHead: cfg.Source.ReadFromHead,
		Tag:          cfg.Output.Tag,
		Cursor:       position.New(cfg.Storage.CursorPath, logger),
		Reassembler:  reassembler,
		Formatter:    format.New(cfg.Output.StripUnderscores),
		Filter:       expr,
		Sink:         emitter,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		watcher:  w,
		sink:     emitter,
		partial:  reassembler,
		logPath:  logPath,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another jtail daemon instance is already running")
	}

	if err := d.watcher.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start watcher: %w", err)
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("jtail daemon started",
		logging.String("lock", d.lockPath),
		logging.String("backend", d.cfg.Source.Backend),
		logging.String("sink", d.cfg.Output.Sink),
		logging.String("tag", d.cfg.Output.Tag),
	)
	return nil
}

// Done is closed when the watcher exits on its own or after Stop.
func (d *Daemon) Done() <-chan struct{} {
	return d.watcher.Done()
}

// Err returns the error that stopped the watcher, if any.
func (d *Daemon) Err() error {
	return d.watcher.Err()
}

// Stop stops the watcher, flushes state, and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if err := d.watcher.Stop(); err != nil {
		logging.WarnWithContext(d.logger, "watcher shutdown incomplete", "watcher_stop_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory; the cursor or partial snapshot may be stale"),
			logging.String(logging.FieldImpact, "some entries may be emitted again on the next start"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)

	stats := d.watcher.Stats()
	d.logger.Info("jtail daemon stopped",
		logging.Int64("read", stats.Read),
		logging.Int64("emitted", stats.Emitted),
		logging.Int64("filtered", stats.Filtered),
		logging.Int64("failed", stats.Failed),
		logging.Int64("reinitialized", stats.Reinitialized),
		logging.Duration("uptime", time.Since(d.startedAt)),
	)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.sink != nil {
		return d.sink.Close()
	}
	return nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		State:        d.watcher.State(),
		Stats:        d.watcher.Stats(),
		CursorPath:   d.cfg.Storage.CursorPath,
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
	}
	if d.partial != nil {
		status.SnapshotPath = d.cfg.Partials.SnapshotPath
	}
	if status.Running {
		status.Uptime = time.Since(d.startedAt)
	}
	return status
}
