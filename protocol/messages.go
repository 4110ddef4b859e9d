// Package protocol defines the JSON control messages exchanged with the
// browser/bot transport alongside the binary audio frames.
package protocol

// MessageType enumerates the control message types on the browser socket.
type MessageType string

const (
	// Server -> browser
	MsgBotState MessageType = "botState"

	// Both directions: the browser sends it to force an interruption, the
	// server sends it when barge-in stops agent speech.
	MsgInterrupt MessageType = "Interrupt"
)

// StateSnapshot mirrors the conversation state to the browser for UI sync.
// Emitted on every activation, deactivation and speaking transition.
type StateSnapshot struct {
	Type     MessageType `json:"type"`
	Active   bool        `json:"active"`
	Speaking bool        `json:"speaking"`
}

// NewStateSnapshot builds a botState message.
func NewStateSnapshot(active, speaking bool) StateSnapshot {
	return StateSnapshot{Type: MsgBotState, Active: active, Speaking: speaking}
}

// Interrupt signals that in-flight agent speech should stop (or has been
// stopped).
type Interrupt struct {
	Type   MessageType `json:"type"`
	Reason string      `json:"reason,omitempty"`
}

// NewInterrupt builds an Interrupt message with the given reason.
func NewInterrupt(reason string) Interrupt {
	return Interrupt{Type: MsgInterrupt, Reason: reason}
}
