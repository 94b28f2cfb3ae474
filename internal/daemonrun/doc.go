// Package daemonrun hosts the foreground daemon process: signal handling,
// per-run log files, preflight gating, and the daemon lifecycle.
package daemonrun
