package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"jtail/internal/config"
	"jtail/internal/filter"
)

// Journal directories sd-journal reads when no path is configured.
var defaultJournalDirs = []string{"/var/log/journal", "/run/log/journal"}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckParentWritable verifies that a file can be created at path. A missing
// parent passes when its nearest existing ancestor is writable, since the
// daemon creates it on start.
func CheckParentWritable(name, path string) Result {
	dir := filepath.Dir(path)
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s not writable: %v)", path, dir, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (writable)", path)}
}

// CheckJournalSource verifies the configured journal location is readable.
func CheckJournalSource(backend, path string) Result {
	const name = "Journal source"
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case config.BackendExport:
		if strings.TrimSpace(path) == "" {
			return Result{Name: name, Detail: "export backend requires source.path"}
		}
		if err := unix.Access(path, unix.R_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("export file %s (readable)", path)}
	default:
		dirs := defaultJournalDirs
		if strings.TrimSpace(path) != "" {
			dirs = []string{path}
		}
		var lastErr error
		for _, dir := range dirs {
			err := unix.Access(dir, unix.R_OK|unix.X_OK)
			if err == nil {
				return Result{Name: name, Passed: true, Detail: fmt.Sprintf("systemd journal %s (readable)", dir)}
			}
			lastErr = err
		}
		return Result{
			Name:   name,
			Detail: fmt.Sprintf("%s (error: %v; add the user to the systemd-journal group)", strings.Join(dirs, ", "), lastErr),
		}
	}
}

// CheckFilter verifies the record filter compiles.
func CheckFilter(expr string) Result {
	const name = "Record filter"
	compiled, err := filter.Compile(expr)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if !compiled.Enabled() {
		return Result{Name: name, Passed: true, Optional: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: compiled.String()}
}
