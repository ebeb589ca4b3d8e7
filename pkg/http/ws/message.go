package ws

import "encoding/json"

// MessageType constants for the session WebSocket protocol.
const (
	// Client -> Server
	TypeSubmitAnswer = "submit_answer"
	TypePing         = "ping"

	// Server -> Client
	TypeSessionState = "session_state"
	TypeError        = "error"
	TypePong         = "pong"
)

// Message wraps all WebSocket payloads with a type tag.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubmitAnswerPayload is sent by the participant whose turn it is.
type SubmitAnswerPayload struct {
	OptionIndex int `json:"option_index"`
}

// ErrorPayload reports a soft failure back to one client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
