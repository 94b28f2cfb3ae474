package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"jtail/internal/filter"
	"jtail/internal/journal"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validatePartials(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSource() error {
	switch c.Source.Backend {
	case BackendSystemd:
	case BackendExport:
		if strings.TrimSpace(c.Source.Path) == "" {
			return fmt.Errorf("source.path must be set when source.backend is %q (or set %s)", BackendExport, sourcePathEnv)
		}
	default:
		return fmt.Errorf("source.backend: unsupported value %q (want %q or %q)", c.Source.Backend, BackendSystemd, BackendExport)
	}
	if _, err := journal.MatchesFromTables(c.Source.Matches); err != nil {
		return fmt.Errorf("source.%w", err)
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.Tag == "" {
		return errors.New("output.tag must be set")
	}
	switch c.Output.Sink {
	case SinkStdout, SinkFile, SinkSQLite:
	default:
		return fmt.Errorf("output.sink: unsupported value %q (want stdout, file, or sqlite)", c.Output.Sink)
	}
	if c.Output.Compress && c.Output.Sink != SinkFile {
		return errors.New("output.compress requires output.sink = \"file\"")
	}
	if _, err := filter.Compile(c.Output.Filter); err != nil {
		return fmt.Errorf("output.filter: %w", err)
	}
	return nil
}

func (c *Config) validatePartials() error {
	if c.Partials.RetentionSeconds <= 0 {
		return errors.New("partials.retention_seconds must be positive")
	}
	if p := c.Partials.CleanupProbability; math.IsNaN(p) || p < 0 || p > 1 {
		return errors.New("partials.cleanup_probability must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
