package ws

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/dgnsrekt/signalfeed/internal/store"
)

// Encoder converts signals to wire format for binary-protocol clients.
type Encoder struct {
	zstdEncoder *zstd.Encoder
}

// NewEncoder creates a new Encoder with Zstd compression.
func NewEncoder() (*Encoder, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Encoder{zstdEncoder: enc}, nil
}

// EncodeSignal returns the signal's raw JSON (for text-protocol clients) and
// its Zstd-compressed form (for binary-protocol clients).
func (e *Encoder) EncodeSignal(sig store.Signal) (raw, compressed []byte, err error) {
	raw, err = json.Marshal(sig)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal signal: %w", err)
	}

	compressed = e.zstdEncoder.EncodeAll(raw, nil)
	return raw, compressed, nil
}

// Close releases encoder resources.
func (e *Encoder) Close() {
	if e.zstdEncoder != nil {
		e.zstdEncoder.Close()
	}
}
