package partial

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"jtail/internal/journal"
)

const snapshotVersion = 1

type snapshot struct {
	Version int                       `json:"version"`
	Pending map[string]*journal.Entry `json:"pending"`
}

// codec encodes the pending set as zstd-compressed JSON.
type codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create snapshot encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("create snapshot decoder: %w", err)
	}
	return &codec{encoder: enc, decoder: dec}, nil
}

func (c *codec) encode(pending map[string]*journal.Entry) ([]byte, error) {
	raw, err := json.Marshal(snapshot{Version: snapshotVersion, Pending: pending})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return c.encoder.EncodeAll(raw, nil), nil
}

func (c *codec) decode(data []byte) (map[string]*journal.Entry, error) {
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d not supported", snap.Version)
	}
	pending := make(map[string]*journal.Entry, len(snap.Pending))
	for id, entry := range snap.Pending {
		if id == "" || entry == nil {
			continue
		}
		pending[id] = entry
	}
	return pending, nil
}

func (c *codec) close() {
	_ = c.encoder.Close()
	c.decoder.Close()
}
