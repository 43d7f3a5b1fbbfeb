package chat

import "time"

type EventType string

const (
	EventStateChanged     EventType = "state_changed"
	EventMessagesReplaced EventType = "messages_replaced"
	EventMessagesAppended EventType = "messages_appended"
	EventMessagesCleared  EventType = "messages_cleared"
	EventDirectoryChanged EventType = "directory_changed"
	EventActiveChanged    EventType = "active_changed"
	EventError            EventType = "error"
)

// Event tells observers what changed; they read the new state from the
// controller.
type Event struct {
	Type           EventType `json:"type"`
	AgentID        string    `json:"agent_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	State          State     `json:"state"`
	Error          string    `json:"error,omitempty"`
	Count          int       `json:"count,omitempty"` // messages affected
	At             time.Time `json:"at"`
}
