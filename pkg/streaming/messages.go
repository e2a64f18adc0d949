// Package streaming defines the JSON envelope used on every WebSocket
// carrying simulation data: the recorder's uplink to a remote collector and
// the live feed the HTTP server offers to clients.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/farmassist/dronesim/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartFlight  = "start_flight"
	TypeEndFlight    = "end_flight"
	TypeSnapshot     = "snapshot"
	TypeNotification = "notification"
	TypeCommand      = "command"
	TypeResult       = "result"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// FlightPayload carries a flight boundary.
type FlightPayload struct {
	Flight *core.Flight `json:"flight"`
}

// CommandPayload is a command sent by a live client.
type CommandPayload struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// ResultPayload answers a CommandPayload.
type ResultPayload struct {
	Command  string         `json:"command"`
	Snapshot *core.Snapshot `json:"snapshot,omitempty"`
	Error    string         `json:"error,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
