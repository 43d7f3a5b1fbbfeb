package model

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single chat message inside a conversation.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Content        string         `json:"content"`
	Role           Role           `json:"role"`
	TokensUsed     int            `json:"tokens_used"`
	CreatedAt      time.Time      `json:"created_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Conversation is the full form of a conversation, messages in ascending
// chronological order.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// ConversationSummary is the list-view form of a conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	AgentID      string    `json:"agent_id"`
	AgentName    string    `json:"agent_name"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastMessage  string    `json:"last_message,omitempty"`
	MessageCount int       `json:"message_count"`
}

// SummaryPatch is a partial ConversationSummary. Nil fields are absent and
// never overwrite a value that is already known.
type SummaryPatch struct {
	ID           string
	Title        *string
	AgentID      *string
	AgentName    *string
	UpdatedAt    *time.Time
	LastMessage  *string
	MessageCount *int
}

// PatchFromSummary builds a patch carrying every field of s. Empty optional
// fields (title, last message) stay absent.
func PatchFromSummary(s ConversationSummary) SummaryPatch {
	p := SummaryPatch{
		ID:           s.ID,
		AgentID:      Ptr(s.AgentID),
		AgentName:    Ptr(s.AgentName),
		UpdatedAt:    Ptr(s.UpdatedAt),
		MessageCount: Ptr(s.MessageCount),
	}
	if s.Title != "" {
		p.Title = Ptr(s.Title)
	}
	if s.LastMessage != "" {
		p.LastMessage = Ptr(s.LastMessage)
	}
	return p
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
