package ws

import (
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/dgnsrekt/signalfeed/internal/store"
)

func TestEncodeSignalRoundTrip(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatalf("creating encoder: %v", err)
	}
	defer enc.Close()

	in := store.Signal{ID: 3, Ticker: "SPX", Kind: "gamma_flip", Note: "synthetic signal", CreatedAt: 1700000000000}

	raw, compressed, err := enc.EncodeSignal(in)
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}

	var fromRaw store.Signal
	if err := json.Unmarshal(raw, &fromRaw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if fromRaw != in {
		t.Errorf("raw roundtrip mismatch: %+v", fromRaw)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("creating zstd reader: %v", err)
	}
	defer dec.Close()

	decompressed, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("decompressing: %v", err)
	}

	var fromCompressed store.Signal
	if err := json.Unmarshal(decompressed, &fromCompressed); err != nil {
		t.Fatalf("unmarshal decompressed: %v", err)
	}
	if fromCompressed != in {
		t.Errorf("compressed roundtrip mismatch: %+v", fromCompressed)
	}
}

func TestBinaryDataFrameEnvelope(t *testing.T) {
	payload := []byte("compressed-bytes")
	frame := buildDataMessageBinary(payload)

	typeURL, value, err := parseEnvelope(frame)
	if err != nil {
		t.Fatalf("parsing envelope: %v", err)
	}
	if typeURL != typeURLSignal {
		t.Errorf("expected type URL %s, got %s", typeURLSignal, typeURL)
	}
	if string(value) != string(payload) {
		t.Errorf("payload mismatch: %q", value)
	}
}

func TestJSONDataFrame(t *testing.T) {
	raw, _ := json.Marshal(store.Signal{ID: 1, Ticker: "SPX", Kind: "gamma_flip"})
	frame := buildDataMessageJSON(raw)

	var msg struct {
		Type     string       `json:"type"`
		DataType string       `json:"dataType"`
		Data     store.Signal `json:"data"`
	}
	if err := json.Unmarshal(frame, &msg); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}

	if msg.Type != "signal" || msg.DataType != "json" {
		t.Errorf("unexpected frame header: %+v", msg)
	}
	if msg.Data.ID != 1 || msg.Data.Ticker != "SPX" {
		t.Errorf("unexpected frame data: %+v", msg.Data)
	}
}

func TestParseUpstreamPing(t *testing.T) {
	msg, err := parseUpstreamMessage([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := msg.(*pingRequest); !ok {
		t.Errorf("expected ping request, got %T", msg)
	}

	if _, err := parseUpstreamMessage([]byte(`{"type":"mystery"}`)); err == nil {
		t.Error("expected error for unknown message type")
	}
}

func TestPongMessagePerProtocol(t *testing.T) {
	jsonPong := buildPongMessage("json")
	var msg map[string]string
	if err := json.Unmarshal(jsonPong, &msg); err != nil {
		t.Fatalf("unmarshal json pong: %v", err)
	}
	if msg["type"] != "pong" {
		t.Errorf("unexpected json pong: %v", msg)
	}

	binPong := buildPongMessage("binary")
	typeURL, _, err := parseEnvelope(binPong)
	if err != nil {
		t.Fatalf("parsing binary pong: %v", err)
	}
	if typeURL != typeURLPong {
		t.Errorf("expected type URL %s, got %s", typeURLPong, typeURL)
	}
}
