package transport

import (
	"encoding/json"
)

// Topic addresses an envelope to a handler group. The set below is the whole
// wire surface; peers sending anything else are ignored.
type Topic string

const (
	// TopicInternal carries handshake and init signaling.
	TopicInternal Topic = "__internal"
	// TopicReady announces protocol capabilities, once, before any rpc-* traffic.
	TopicReady Topic = "ready"
	// TopicClose instructs the embedding context to tear down the dialog.
	TopicClose Topic = "close"
	// TopicRPCRequests and TopicRPCRequest are inbound wallet calls. Both
	// spellings are accepted for compatibility with older embedders.
	TopicRPCRequests Topic = "rpc-requests"
	TopicRPCRequest  Topic = "rpc-request"
	// TopicRPCResponse carries the result envelope back to the caller.
	TopicRPCResponse Topic = "rpc-response"
)

// Envelope is the only thing that crosses the medium.
type Envelope struct {
	Topic   Topic           `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Capabilities is the ready-handshake payload.
type Capabilities struct {
	ChainIDs     []string `json:"chainIds"`
	TrustedHosts []string `json:"trustedHosts"`
}

// decodeEnvelope parses raw bytes into an Envelope. A false return means the
// bytes were not a well-formed envelope and must be dropped without comment.
func decodeEnvelope(data []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, false
	}
	if env.Topic == "" {
		return Envelope{}, false
	}
	return env, true
}
