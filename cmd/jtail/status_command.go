package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jtail/internal/config"
	"jtail/internal/journal"
	"jtail/internal/logging"
	"jtail/internal/partial"
	"jtail/internal/position"
	"jtail/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, position, and environment status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			p := newStatusPrinter(out)

			lines := p.section("Daemon")
			lines = append(lines, daemonLines(p, cfg)...)
			lines = append(lines, "")
			lines = append(lines, p.section("State")...)
			lines = append(lines, stateLines(p, cfg)...)
			lines = append(lines, "")
			lines = append(lines, p.section("Checks")...)
			lines = append(lines, checkLines(p, preflight.RunAll(cfg))...)

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func daemonLines(p statusPrinter, cfg *config.Config) []string {
	probe := preflight.ProbeDaemon(cfg)
	kind := statusInfo
	if probe.Running {
		kind = statusOK
	}
	return []string{p.line("jtail", kind, probe.Detail())}
}

func stateLines(p statusPrinter, cfg *config.Config) []string {
	lines := make([]string, 0, 3)

	store := position.New(cfg.Storage.CursorPath, logging.NewNop())
	if raw, ok := store.Current(); ok {
		pos, _ := journal.ParsePosition(raw)
		lines = append(lines, p.line("Cursor", statusOK, pos.String()))
	} else {
		lines = append(lines, p.line("Cursor", statusInfo, "none; next run starts at "+defaultStart(cfg)))
	}

	lines = append(lines, p.line("Sink", statusInfo, sinkDescription(cfg)))

	if !cfg.Partials.Enabled {
		lines = append(lines, p.line("Partials", statusInfo, "disabled"))
		return lines
	}
	pending, err := partial.Inspect(cfg.Partials.SnapshotPath, logging.NewNop())
	switch {
	case err != nil:
		lines = append(lines, p.line("Partials", statusWarn, err.Error()))
	case len(pending) == 0:
		lines = append(lines, p.line("Partials", statusOK, "no pending fragments"))
	default:
		lines = append(lines, p.line("Partials", statusOK, fmt.Sprintf("%d pending", len(pending))))
	}
	return lines
}

func sinkDescription(cfg *config.Config) string {
	switch cfg.Output.Sink {
	case config.SinkFile:
		if cfg.Output.Compress {
			return "file " + cfg.Output.FilePath + " (zstd)"
		}
		return "file " + cfg.Output.FilePath
	case config.SinkSQLite:
		return "sqlite " + cfg.Output.SQLitePath
	default:
		return cfg.Output.Sink
	}
}

func checkLines(p statusPrinter, results []preflight.Result) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		switch {
		case !r.Passed && r.Optional:
			kind = statusWarn
		case !r.Passed:
			kind = statusError
		}
		lines = append(lines, p.line(r.Name, kind, r.Detail))
	}
	return lines
}
