// Package watcher drives the journal tail loop.
//
// A Watcher owns one goroutine that opens the source, seeks to the persisted
// cursor (or head/tail), and then streams entries through reassembly,
// formatting and the optional filter into the sink. The cursor is persisted
// after each entry has been handed off, so a crash between emission and
// persistence re-emits that entry on restart.
//
// Source invalidation (rotation, vacuum) reopens the source and re-seeks while
// keeping buffered fragments. Errors from the source itself or from cursor
// persistence stop the worker; the error is available from Err once Done is
// closed.
package watcher
