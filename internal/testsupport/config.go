package testsupport

import (
	"path/filepath"
	"testing"

	"jtail/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a normalized, validated config seeded with unique temp
// directories per test. Options run before normalization.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Normalize(); err != nil {
		t.Fatalf("normalize config: %v", err)
	}
	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithReadFromHead starts tailing at the oldest entry.
func WithReadFromHead() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Source.ReadFromHead = true
	}
}

// WithPartials enables container message reassembly.
func WithPartials() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Partials.Enabled = true
	}
}

// WithExportSource switches the backend to an export file under the temp dir.
// The file itself is not created.
func WithExportSource() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Source.Backend = config.BackendExport
		b.cfg.Source.Path = filepath.Join(b.baseDir, "journal.json")
	}
}

// WithSink selects the output sink.
func WithSink(sink string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.Sink = sink
	}
}

// WithFilter sets the record filter expression.
func WithFilter(expr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.Filter = expr
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
