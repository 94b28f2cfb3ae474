// Package sink delivers formatted journal entries downstream.
//
// Every sink implements Emitter. Emit is synchronous: the watcher calls it on
// its worker goroutine and does not read the next entry until it returns, so a
// slow sink stalls tailing. Records are rendered the way `journalctl -o json`
// renders fields: valid UTF-8 values are strings, anything else is an array of
// byte values, and repeated field names become arrays.
package sink
