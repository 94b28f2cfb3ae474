package config

// Accepted enumeration values.
const (
	BackendSystemd = "systemd"
	BackendExport  = "export"

	SinkStdout = "stdout"
	SinkFile   = "file"
	SinkSQLite = "sqlite"

	FormatConsole = "console"
	FormatJSON    = "json"
)

const (
	defaultConfigPath                = "~/.config/jtail/config.toml"
	defaultStateDir                  = "~/.local/share/jtail"
	defaultLogDir                    = "~/.local/share/jtail/logs"
	defaultLogRetentionDays          = 30
	defaultLogFormat                 = FormatConsole
	defaultLogLevel                  = "info"
	defaultTag                       = "journal"
	defaultCursorFile                = "cursor"
	defaultSnapshotFile              = "partials.snapshot"
	defaultRecordsFile               = "records.jsonl"
	defaultRecordsDB                 = "records.db"
	defaultPartialRetentionSeconds   = 3600
	defaultPartialCleanupProbability = 0.01

	sourcePathEnv = "JTAIL_SOURCE_PATH"
)

// Default returns a Config populated with repository defaults. Derived file
// paths stay empty until normalization resolves them against the state dir.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Source: Source{
			Backend: BackendSystemd,
		},
		Output: Output{
			Tag:  defaultTag,
			Sink: SinkStdout,
		},
		Partials: Partials{
			RetentionSeconds:   defaultPartialRetentionSeconds,
			CleanupProbability: defaultPartialCleanupProbability,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
