// Package events defines event types and enumerations for the MCWarden event system.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Chat bridge events
	EventChatMessage EventType = "chat_message"
	EventBridgeState EventType = "bridge_state"

	// RCON session events
	EventRconConnected    EventType = "rcon_connected"
	EventRconDisconnected EventType = "rcon_disconnected"
	EventRconAuthFailed   EventType = "rcon_auth_failed"

	// Dispatch events
	EventCommandDispatched EventType = "command_dispatched"
	EventCommandRejected   EventType = "command_rejected"

	// System events
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// BridgeState represents the connection state of the log monitor bridge.
type BridgeState int

const (
	BridgeDisconnected BridgeState = iota
	BridgeConnecting
	BridgeStreaming
)

// bridgeStateStrings maps BridgeState values to their lowercase string representation.
var bridgeStateStrings = map[BridgeState]string{
	BridgeDisconnected: "disconnected",
	BridgeConnecting:   "connecting",
	BridgeStreaming:    "streaming",
}

// String returns the string representation of BridgeState.
func (s BridgeState) String() string {
	if str, ok := bridgeStateStrings[s]; ok {
		return str
	}
	return "disconnected"
}

// MarshalJSON serializes BridgeState as a JSON string (e.g. "streaming").
func (s BridgeState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Event is a single message on the bus.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// ChatMessagePayload carries a player chat line extracted from the server log.
type ChatMessagePayload struct {
	Timestamp  time.Time `json:"timestamp"`
	PlayerName string    `json:"player_name"`
	Message    string    `json:"message"`
	// Forwarded is true when a wake word matched and the message was
	// handed to the command-routing path.
	Forwarded bool `json:"forwarded"`
}

// BridgeStatePayload reports a bridge state transition.
type BridgeStatePayload struct {
	State BridgeState `json:"state"`
	Addr  string      `json:"addr"`
}

// CommandDispatchedPayload records a command that went through the dispatcher.
type CommandDispatchedPayload struct {
	Origin      string    `json:"origin"`
	Sender      string    `json:"sender"`
	Action      string    `json:"action"`
	CommandLine string    `json:"command_line"`
	Response    string    `json:"response"`
	Err         string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
