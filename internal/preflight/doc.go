// Package preflight provides readiness checks for the paths and settings jtail
// depends on.
//
// The daemon runs RunAll before starting the watcher and refuses to start if a
// required check fails. The CLI "jtail status" command renders the same
// results alongside the daemon's lock state.
package preflight
