package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"jtail/internal/config"
	"jtail/internal/daemon"
	"jtail/internal/journal"
	"jtail/internal/logging"
	"jtail/internal/preflight"
	"jtail/internal/sink"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool

	// Stdout receives records when the stdout sink is selected. Defaults to
	// os.Stdout.
	Stdout io.Writer
	// Opener overrides the configured journal backend.
	Opener journal.Opener
}

// Run starts the jtail daemon and blocks until a signal arrives, ctx is
// cancelled, or the watcher stops on an unrecoverable error. The last case is
// returned as an error so the process exits non-zero.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("jtail-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	// stdout may carry records, so logs never go there.
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		RunID:            runID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	var debugLogPath string
	if opts.Diagnostic {
		debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
		debugLogPath = filepath.Join(debugDir, fmt.Sprintf("jtail-%s.log", runID))
		debugLogger, debugErr := logging.New(logging.Options{
			Level:       "debug",
			Format:      config.FormatJSON,
			OutputPaths: []string{debugLogPath},
			Development: true,
			RunID:       runID,
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
			if err := ensureCurrentLogPointer(debugDir, debugLogPath); err != nil {
				fmt.Fprintf(os.Stderr, "warn: unable to update debug/jtail.log link: %v\n", err)
			}
		}
		logger.Info("diagnostic mode enabled",
			logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
			logging.String("debug_log_path", debugLogPath),
		)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update jtail.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "jtail-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "debug"), Pattern: "jtail-*.log", Exclude: []string{debugLogPath}},
	)

	logConfigSnapshot(logger, cfg)
	if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
		for _, result := range failed {
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldErrorHint, "run 'jtail status' for the full check list"),
			)
		}
		return fmt.Errorf("preflight: %s: %s", failed[0].Name, failed[0].Detail)
	}

	opener := opts.Opener
	if opener == nil {
		if opener, err = journal.NewOpener(cfg.Source.Backend); err != nil {
			return err
		}
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	emitter, err := sink.New(cfg, runID, stdout)
	if err != nil {
		logger.Error("open sink", logging.Error(err), logging.String("sink", cfg.Output.Sink))
		return err
	}

	d, err := daemon.New(cfg, logger, opener, emitter, logPath)
	if err != nil {
		_ = emitter.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	// Only the lock holder owns the pid file.
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	select {
	case <-signalCtx.Done():
		logger.Info("jtail daemon shutting down")
		return nil
	case <-d.Done():
		if signalCtx.Err() != nil {
			logger.Info("jtail daemon shutting down")
			return nil
		}
		if err := d.Err(); err != nil {
			return fmt.Errorf("journal watcher stopped: %w", err)
		}
		return errors.New("journal watcher stopped unexpectedly")
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "jtail.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("backend", cfg.Source.Backend),
		logging.String(logging.FieldSourcePath, cfg.Source.Path),
		logging.Bool("read_from_head", cfg.Source.ReadFromHead),
		logging.Int("match_groups", len(cfg.Source.Matches)),
		logging.String("cursor_path", cfg.Storage.CursorPath),
		logging.String("sink", cfg.Output.Sink),
		logging.String("tag", cfg.Output.Tag),
		logging.Bool("strip_underscores", cfg.Output.StripUnderscores),
		logging.Bool("filter_enabled", cfg.Output.Filter != ""),
		logging.Bool("partials_enabled", cfg.Partials.Enabled),
		logging.Int("partials_retention_seconds", cfg.Partials.RetentionSeconds),
		logging.Float64("partials_cleanup_probability", cfg.Partials.CleanupProbability),
	)
}
