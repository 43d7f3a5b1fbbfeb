package model

// MessageRequest is the body of a send-message call. ConversationID is omitted
// to start a new conversation.
type MessageRequest struct {
	Content        string         `json:"content"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// MessageResponse is the agent reply. ConversationID is authoritative for both
// new and existing conversations.
type MessageResponse struct {
	Content        string         `json:"content"`
	AgentID        string         `json:"agent_id"`
	ConversationID string         `json:"conversation_id"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Tokens         *TokenUsage    `json:"tokens,omitempty"`
}

// TotalTokens returns the reported total, zero when usage is missing or negative.
func (r MessageResponse) TotalTokens() int {
	if r.Tokens == nil {
		return 0
	}
	return max(r.Tokens.Total, 0)
}
