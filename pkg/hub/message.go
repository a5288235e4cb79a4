// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import (
	"encoding/json"
	"time"
)

// Event types broadcast by the simulator.
const (
	EventFrame     = "frame"     // Draw frame during a move
	EventMove      = "move"      // Move finished or aborted
	EventReset     = "reset"     // Arm returned home
	EventObstacles = "obstacles" // Obstacle field changed
)

// Event is the JSON envelope sent to telemetry clients.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// Message is one encoded payload queued for clients.
type Message struct {
	Data []byte
}

// NewMessage wraps pre-encoded JSON bytes.
func NewMessage(data []byte) Message {
	return Message{Data: data}
}

// EncodeEvent builds a message carrying an event envelope.
func EncodeEvent(eventType string, data any) (Message, error) {
	b, err := json.Marshal(Event{Type: eventType, Time: time.Now().UTC(), Data: data})
	if err != nil {
		return Message{}, err
	}
	return NewMessage(b), nil
}
