package handler_test

import (
	"context"
	"time"

	"laivdata.app/agentdesk/internal/events"
	"laivdata.app/agentdesk/internal/model"
)

type mockPlatform struct {
	getAgentFn    func(ctx context.Context, agentID string) (*model.Agent, error)
	getConvFn     func(ctx context.Context, conversationID string) (*model.Conversation, error)
	listFn        func(ctx context.Context, agentID string) ([]model.ConversationSummary, error)
	sendFn        func(ctx context.Context, agentID string, req model.MessageRequest) (*model.MessageResponse, error)
	createFn      func(ctx context.Context, agentID, title string) (*model.Conversation, error)
	updateTitleFn func(ctx context.Context, conversationID, title string) (*model.Conversation, error)
	deleteFn      func(ctx context.Context, conversationID string) error
}

func (m *mockPlatform) GetAgent(ctx context.Context, agentID string) (*model.Agent, error) {
	if m.getAgentFn != nil {
		return m.getAgentFn(ctx, agentID)
	}
	return &model.Agent{ID: agentID, Name: "Helpful Assistant"}, nil
}

func (m *mockPlatform) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if m.getConvFn != nil {
		return m.getConvFn(ctx, conversationID)
	}
	return &model.Conversation{ID: conversationID}, nil
}

func (m *mockPlatform) ListConversations(ctx context.Context, agentID string) ([]model.ConversationSummary, error) {
	if m.listFn != nil {
		return m.listFn(ctx, agentID)
	}
	return nil, nil
}

func (m *mockPlatform) SendAgentMessage(ctx context.Context, agentID string, req model.MessageRequest) (*model.MessageResponse, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, agentID, req)
	}
	return &model.MessageResponse{AgentID: agentID, ConversationID: "conv-1"}, nil
}

func (m *mockPlatform) CreateConversation(ctx context.Context, agentID, title string) (*model.Conversation, error) {
	if m.createFn != nil {
		return m.createFn(ctx, agentID, title)
	}
	return &model.Conversation{ID: "conv-new", AgentID: agentID, Title: title}, nil
}

func (m *mockPlatform) UpdateConversationTitle(ctx context.Context, conversationID, title string) (*model.Conversation, error) {
	if m.updateTitleFn != nil {
		return m.updateTitleFn(ctx, conversationID, title)
	}
	return &model.Conversation{ID: conversationID, Title: title}, nil
}

func (m *mockPlatform) DeleteConversation(ctx context.Context, conversationID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, conversationID)
	}
	return nil
}

type mockEventReader struct {
	readFn func(ctx context.Context, sessionID, agentID, lastID string, block time.Duration) ([]events.Entry, string, error)
}

func (m *mockEventReader) Read(ctx context.Context, sessionID, agentID, lastID string, block time.Duration) ([]events.Entry, string, error) {
	return m.readFn(ctx, sessionID, agentID, lastID, block)
}
