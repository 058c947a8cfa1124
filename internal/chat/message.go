package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the conversation.
//
// IDs are unique for the lifetime of the conversation and are used as keys in
// the controller's guard sets, so they must never be reused. Content is
// immutable once created except for in-place progress updates driven by the
// import flow, and Directive is cleared once it has been consumed.
type Message struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time

	// Directive is the structured UI instruction attached to this message,
	// or nil when the message is plain text.
	Directive Directive

	// DebugPayload retains the raw provider response for the debug view.
	// It is never shown to the end user outside that view.
	DebugPayload any
}

func newMessageID() string {
	return uuid.NewString()
}

// DebugText renders the raw debug payload for display. It never panics: a
// payload that cannot be serialized renders as a literal stand-in instead.
func (m *Message) DebugText() string {
	if m.DebugPayload == nil {
		return ""
	}
	if raw, ok := m.DebugPayload.(json.RawMessage); ok {
		return string(raw)
	}
	encoded, err := json.MarshalIndent(m.DebugPayload, "", "  ")
	if err != nil {
		return "<unserializable payload>"
	}
	return string(encoded)
}
