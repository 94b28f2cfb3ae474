package partial

import (
	"log/slog"
	"time"

	"jtail/internal/position"
)

// Inspect reads the snapshot at path without taking its lock, so it works
// while a daemon owns the buffer. Unlike Load, a corrupt snapshot is an error.
func Inspect(path string, logger *slog.Logger) ([]Pending, error) {
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	defer c.close()
	data, ok := position.New(path, logger).Current()
	if !ok {
		return nil, nil
	}
	pending, err := c.decode(data)
	if err != nil {
		return nil, err
	}
	return describe(pending, time.Now()), nil
}
