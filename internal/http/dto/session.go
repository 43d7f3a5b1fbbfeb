package dto

import (
	"laivdata.app/agentdesk/internal/chat"
	"laivdata.app/agentdesk/internal/model"
)

type SendMessageRequest struct {
	Content  string         `json:"content" binding:"max=32000"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type SetActiveRequest struct {
	ConversationID string `json:"conversation_id" binding:"required,max=128"`
}

type StartConversationRequest struct {
	Title string `json:"title" binding:"max=255"`
}

type RenameConversationRequest struct {
	Title string `json:"title" binding:"required,max=255"`
}

type SessionResponse struct {
	SessionID            string                      `json:"session_id"`
	AgentID              string                      `json:"agent_id"`
	Agent                *model.Agent                `json:"agent,omitempty"`
	State                chat.State                  `json:"state"`
	Error                string                      `json:"error,omitempty"`
	Sending              bool                        `json:"sending"`
	ActiveConversationID string                      `json:"active_conversation_id,omitempty"`
	Messages             []model.Message             `json:"messages"`
	Conversations        []model.ConversationSummary `json:"conversations"`
}

func ToSessionResponse(sessionID string, snap chat.Snapshot, conversations []model.ConversationSummary) *SessionResponse {
	if snap.Messages == nil {
		snap.Messages = []model.Message{}
	}
	if conversations == nil {
		conversations = []model.ConversationSummary{}
	}
	return &SessionResponse{
		SessionID:            sessionID,
		AgentID:              snap.AgentID,
		Agent:                snap.Agent,
		State:                snap.State,
		Error:                snap.Error,
		Sending:              snap.Sending,
		ActiveConversationID: snap.ActiveConversationID,
		Messages:             snap.Messages,
		Conversations:        conversations,
	}
}

type ConversationListResponse struct {
	Conversations []model.ConversationSummary `json:"conversations"`
}
