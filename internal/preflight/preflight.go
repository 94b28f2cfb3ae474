package preflight

import (
	"jtail/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Optional bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckJournalSource(cfg.Source.Backend, cfg.Source.Path))
	results = append(results, CheckFilter(cfg.Output.Filter))

	switch cfg.Output.Sink {
	case config.SinkFile:
		results = append(results, CheckParentWritable("Output file", cfg.Output.FilePath))
	case config.SinkSQLite:
		results = append(results, CheckParentWritable("SQLite database", cfg.Output.SQLitePath))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
