// Package journal models journal entries and the sequential, cursor-based log
// sources jtail reads them from.
//
// A Source behaves like an sd-journal handle: it is opened for a path, narrowed
// with field matches, positioned with Seek (a persisted cursor or the Head/Tail
// sentinels), and then advanced one entry at a time with Next. Wait reports
// whether the source has grown or must be reopened after rotation.
//
// Two backends are provided. "systemd" reads the native journal through
// sdjournal and needs cgo on Linux. "export" reads a file of `journalctl -o
// json` lines and works anywhere, which also makes it the backend of choice for
// replaying captured journals.
package journal
