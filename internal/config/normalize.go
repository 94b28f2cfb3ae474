package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Normalize fills derived defaults and expands paths. Load calls it; callers
// building a Config in memory call it before Validate.
func (c *Config) Normalize() error {
	return c.normalize()
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSource(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	if err := c.normalizeOutput(); err != nil {
		return err
	}
	if err := c.normalizePartials(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSource() error {
	c.Source.Backend = strings.ToLower(strings.TrimSpace(c.Source.Backend))
	if c.Source.Backend == "" {
		c.Source.Backend = BackendSystemd
	}
	c.Source.Path = strings.TrimSpace(c.Source.Path)
	if c.Source.Path == "" {
		if value, ok := os.LookupEnv(sourcePathEnv); ok {
			c.Source.Path = strings.TrimSpace(value)
		}
	}
	if c.Source.Path != "" {
		var err error
		if c.Source.Path, err = expandPath(c.Source.Path); err != nil {
			return fmt.Errorf("source.path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	path, err := c.stateFile(c.Storage.CursorPath, defaultCursorFile)
	if err != nil {
		return fmt.Errorf("storage.cursor_path: %w", err)
	}
	c.Storage.CursorPath = path
	return nil
}

func (c *Config) normalizeOutput() error {
	c.Output.Tag = strings.TrimSpace(c.Output.Tag)
	c.Output.Sink = strings.ToLower(strings.TrimSpace(c.Output.Sink))
	if c.Output.Sink == "" {
		c.Output.Sink = SinkStdout
	}
	c.Output.Filter = strings.TrimSpace(c.Output.Filter)
	var err error
	if c.Output.FilePath, err = c.stateFile(c.Output.FilePath, defaultRecordsFile); err != nil {
		return fmt.Errorf("output.file_path: %w", err)
	}
	if c.Output.SQLitePath, err = c.stateFile(c.Output.SQLitePath, defaultRecordsDB); err != nil {
		return fmt.Errorf("output.sqlite_path: %w", err)
	}
	return nil
}

func (c *Config) normalizePartials() error {
	path, err := c.stateFile(c.Partials.SnapshotPath, defaultSnapshotFile)
	if err != nil {
		return fmt.Errorf("partials.snapshot_path: %w", err)
	}
	c.Partials.SnapshotPath = path
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// stateFile expands value, or falls back to name under the state dir.
func (c *Config) stateFile(value, name string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return filepath.Join(c.Paths.StateDir, name), nil
	}
	return expandPath(strings.TrimSpace(value))
}
