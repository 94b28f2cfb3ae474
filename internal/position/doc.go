// Package position persists a single opaque value to disk.
//
// A Store backs the journal cursor and the partial-message snapshot. Each
// Update fully replaces the file (temp write, fsync, rename) and Start takes an
// exclusive flock on "<path>.lock" so two processes never share a file. A Store
// with an empty path is a no-op: reads report nothing and writes are dropped.
package position
