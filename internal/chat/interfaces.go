package chat

import (
	"context"

	"laivdata.app/agentdesk/internal/model"
)

// AgentLookup resolves the agent shown in the chat header.
type AgentLookup interface {
	GetAgent(ctx context.Context, agentID string) (*model.Agent, error)
}

// ConversationFetcher loads a full conversation, messages in ascending order.
type ConversationFetcher interface {
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
}

// ConversationLister loads the summaries of an agent's conversations.
type ConversationLister interface {
	ListConversations(ctx context.Context, agentID string) ([]model.ConversationSummary, error)
}

// MessageSender posts a user message and returns the agent reply.
type MessageSender interface {
	SendAgentMessage(ctx context.Context, agentID string, req model.MessageRequest) (*model.MessageResponse, error)
}

// ConversationEditor manages conversation records.
type ConversationEditor interface {
	CreateConversation(ctx context.Context, agentID, title string) (*model.Conversation, error)
	UpdateConversationTitle(ctx context.Context, conversationID, title string) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID string) error
}

// Platform is everything the controller needs from the remote API.
type Platform interface {
	AgentLookup
	ConversationFetcher
	ConversationLister
	MessageSender
	ConversationEditor
}

// Observer is notified after each committed change, outside the controller lock.
type Observer interface {
	OnEvent(ctx context.Context, evt Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, evt Event)

func (f ObserverFunc) OnEvent(ctx context.Context, evt Event) {
	f(ctx, evt)
}
