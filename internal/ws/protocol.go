package ws

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// Negotiable subprotocols.
const (
	ProtocolBinary = "signalfeed.binary.v1"
	ProtocolJSON   = "signalfeed.json.v1"
)

// Type URLs for binary frames. Binary downstream frames are a
// google.protobuf.Any envelope: the type URL names the payload kind, the
// value carries it (Zstd-compressed signal JSON for data frames).
const (
	typeURLSignal    = "signalfeed.signal.v1"
	typeURLConnected = "signalfeed.connected.v1"
	typeURLPong      = "signalfeed.pong.v1"
)

// Upstream message types for internal routing. Upstream control messages are
// JSON text for both protocols; only downstream data frames differ.
type pingRequest struct{}

// parseUpstreamMessage parses a JSON-encoded upstream control message.
func parseUpstreamMessage(data []byte) (any, error) {
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal upstream message: %w", err)
	}

	msgType, _ := msg["type"].(string)

	switch msgType {
	case "ping":
		return &pingRequest{}, nil
	default:
		return nil, fmt.Errorf("unknown message type: %s", msgType)
	}
}

// buildConnectedMessage creates the initial connection acknowledgment in the
// client's negotiated protocol.
func buildConnectedMessage(connectionID, protocol string) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"connectionId": connectionID,
	})

	if protocol == "json" {
		msg := map[string]interface{}{
			"type":         "system",
			"event":        "connected",
			"connectionId": connectionID,
		}
		data, _ := json.Marshal(msg)
		return data
	}

	return marshalEnvelope(typeURLConnected, payload)
}

// buildDataMessageJSON creates a text frame with the raw signal JSON embedded
// directly.
func buildDataMessageJSON(rawJSON json.RawMessage) []byte {
	msg := map[string]interface{}{
		"type":     "signal",
		"dataType": "json",
		"data":     rawJSON,
	}
	data, _ := json.Marshal(msg)
	return data
}

// buildDataMessageBinary creates a binary frame wrapping Zstd-compressed
// signal JSON in an Any envelope.
func buildDataMessageBinary(compressed []byte) []byte {
	return marshalEnvelope(typeURLSignal, compressed)
}

// buildPongMessage creates a pong response in the client's negotiated protocol.
func buildPongMessage(protocol string) []byte {
	if protocol == "json" {
		data, _ := json.Marshal(map[string]interface{}{"type": "pong"})
		return data
	}
	return marshalEnvelope(typeURLPong, nil)
}

func marshalEnvelope(typeURL string, value []byte) []byte {
	msg := &anypb.Any{
		TypeUrl: typeURL,
		Value:   value,
	}
	data, _ := proto.Marshal(msg)
	return data
}

// parseEnvelope unwraps a binary frame back into its type URL and payload.
// Used by binary-protocol consumers and tests.
func parseEnvelope(data []byte) (string, []byte, error) {
	var msg anypb.Any
	if err := proto.Unmarshal(data, &msg); err != nil {
		return "", nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return msg.TypeUrl, msg.Value, nil
}
