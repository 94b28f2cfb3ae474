package preflight

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"jtail/internal/config"
)

// DaemonProbe reports whether a jtail daemon holds the instance lock.
type DaemonProbe struct {
	Running  bool
	PID      int
	LockPath string
}

// ProbeDaemon checks the single-instance lock without keeping it.
func ProbeDaemon(cfg *config.Config) DaemonProbe {
	probe := DaemonProbe{LockPath: cfg.LockPath()}
	lock := flock.New(probe.LockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return probe
	}
	if ok {
		_ = lock.Unlock()
		return probe
	}
	probe.Running = true
	if data, err := os.ReadFile(cfg.PIDPath()); err == nil {
		probe.PID, _ = strconv.Atoi(strings.TrimSpace(string(data)))
	}
	return probe
}

// Detail renders a display-friendly summary for status output.
func (p DaemonProbe) Detail() string {
	if !p.Running {
		return "Not running"
	}
	if p.PID > 0 {
		return fmt.Sprintf("Running (pid %d)", p.PID)
	}
	return "Running"
}
