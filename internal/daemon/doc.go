// Package daemon coordinates the long-running jtail process.
//
// It wires configuration, the journal opener, the cursor and snapshot stores,
// the reassembler, formatter, filter and sink into a single watcher lifecycle,
// with flock-based locking to prevent multiple instances tailing into the same
// state directory.
//
// Keep orchestration logic here: tailing semantics live in the watcher and its
// collaborators while the daemon focuses on startup, shutdown, and status.
package daemon
