package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Source selects the journal backend and what to read from it.
type Source struct {
	Backend      string              `toml:"backend"`        // "systemd" or "export"
	Path         string              `toml:"path"`           // journal directory or export file
	ReadFromHead bool                `toml:"read_from_head"` // start at the oldest entry without a cursor
	Matches      []map[string]string `toml:"matches"`        // OR between tables, AND within a table
}

// Storage contains the cursor location.
type Storage struct {
	CursorPath string `toml:"cursor_path"` // Default: <state_dir>/cursor
}

// Output configures record formatting and emission.
type Output struct {
	Tag              string `toml:"tag"`
	StripUnderscores bool   `toml:"strip_underscores"`
	Sink             string `toml:"sink"` // "stdout", "file", or "sqlite"
	FilePath         string `toml:"file_path"`
	Compress         bool   `toml:"compress"`
	SQLitePath       string `toml:"sqlite_path"`
	Filter           string `toml:"filter"` // CEL expression; empty disables
}

// Partials configures reassembly of split container messages.
type Partials struct {
	Enabled            bool    `toml:"enabled"`
	SnapshotPath       string  `toml:"snapshot_path"`
	RetentionSeconds   int     `toml:"retention_seconds"`
	CleanupProbability float64 `toml:"cleanup_probability"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for jtail.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - Source: journal backend, location, and match filters
//   - Storage: cursor persistence
//   - Output: tag, field formatting, sink selection, record filter
//   - Partials: container message reassembly
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	Source   Source   `toml:"source"`
	Storage  Storage  `toml:"storage"`
	Output   Output   `toml:"output"`
	Partials Partials `toml:"partials"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strings.TrimSpace(strict.String()))
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("jtail.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.LogDir, filepath.Dir(c.Storage.CursorPath)}
	if c.Partials.Enabled {
		dirs = append(dirs, filepath.Dir(c.Partials.SnapshotPath))
	}
	switch c.Output.Sink {
	case SinkFile:
		dirs = append(dirs, filepath.Dir(c.Output.FilePath))
	case SinkSQLite:
		dirs = append(dirs, filepath.Dir(c.Output.SQLitePath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the daemon's single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "jtail.lock")
}

// PIDPath returns the daemon's pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "jtail.pid")
}

// PartialRetention returns the configured retention as a duration.
func (c *Config) PartialRetention() time.Duration {
	return time.Duration(c.Partials.RetentionSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
