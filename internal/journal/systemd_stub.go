//go:build !linux || !cgo

package journal

import "errors"

// ErrSystemdUnavailable is returned when the binary was built without sd-journal support.
var ErrSystemdUnavailable = errors.New("systemd journal backend requires linux and cgo; use the export backend")

func openSystemd(string) (Source, error) {
	return nil, ErrSystemdUnavailable
}
