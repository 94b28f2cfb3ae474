// Package logs follows jtail's own log files for the CLI.
//
// Tail prints the last N lines of a file and, in follow mode, keeps polling
// for appended lines. The per-run log pointer is re-resolved on every poll so
// following survives a daemon restart that repoints it at a new file.
package logs
