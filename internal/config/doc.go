// Package config loads, normalizes, and validates jtail configuration data.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the JTAIL_SOURCE_PATH environment fallback. Derived
// file locations (cursor, partial snapshot, sink outputs, daemon lock) are
// resolved against paths.state_dir during normalization so every consumer sees
// absolute paths.
package config
