// Package main hosts the jtail CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the tailing daemon in the foreground and
// exposes maintenance for its on-disk state: the journal cursor, the partial
// message snapshot, and the configuration file. It centralizes configuration
// resolution so subcommands can focus on output instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
