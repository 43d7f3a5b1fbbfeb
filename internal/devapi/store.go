package devapi

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"

	"laivdata.app/agentdesk/common/id"
	"laivdata.app/agentdesk/internal/chat"
	"laivdata.app/agentdesk/internal/model"
)

var (
	ErrAgentNotFound        = errors.New("agent not found")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Store keeps agents and conversations in memory.
type Store struct {
	mu            sync.RWMutex
	agents        map[string]*model.Agent
	conversations map[string]*model.Conversation
	now           func() time.Time
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		agents:        make(map[string]*model.Agent),
		conversations: make(map[string]*model.Conversation),
		now:           now,
	}
}

func (s *Store) PutAgent(agent model.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now
	if agent.MCPs == nil {
		agent.MCPs = []model.AgentMCP{}
	}
	s.agents[agent.ID] = &agent
}

func (s *Store) Agent(agentID string) (model.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[agentID]
	if !ok {
		return model.Agent{}, ErrAgentNotFound
	}
	return *a, nil
}

func (s *Store) Agents() []model.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b model.Agent) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) CreateConversation(agentID, title string) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[agentID]; !ok {
		return model.Conversation{}, ErrAgentNotFound
	}
	now := s.now()
	conv := &model.Conversation{
		ID:        id.NewString(),
		Title:     title,
		UserID:    "dev-user",
		AgentID:   agentID,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []model.Message{},
	}
	s.conversations[conv.ID] = conv
	return cloneConversation(conv), nil
}

func (s *Store) Conversation(conversationID string) (model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return model.Conversation{}, ErrConversationNotFound
	}
	return cloneConversation(conv), nil
}

// Summaries lists an agent's conversations, most recently updated first.
func (s *Store) Summaries(agentID string) []model.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agentName := chat.DefaultAgentName
	if a, ok := s.agents[agentID]; ok {
		agentName = a.Name
	}
	out := []model.ConversationSummary{}
	for _, conv := range s.conversations {
		if conv.AgentID != agentID {
			continue
		}
		summary := model.ConversationSummary{
			ID:           conv.ID,
			Title:        conv.Title,
			AgentID:      conv.AgentID,
			AgentName:    agentName,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
		}
		if n := len(conv.Messages); n > 0 {
			summary.LastMessage = conv.Messages[n-1].Content
		}
		out = append(out, summary)
	}
	slices.SortFunc(out, func(a, b model.ConversationSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Store) Rename(conversationID, title string) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return model.Conversation{}, ErrConversationNotFound
	}
	conv.Title = title
	conv.UpdatedAt = s.now()
	return cloneConversation(conv), nil
}

func (s *Store) Delete(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return ErrConversationNotFound
	}
	delete(s.conversations, conversationID)
	return nil
}

// AppendExchange stores a user message and its reply. The conversation's
// title is derived from the first message when it has none.
func (s *Store) AppendExchange(conversationID string, user, reply model.Message) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return model.Conversation{}, ErrConversationNotFound
	}
	now := s.now()
	user.ID, reply.ID = id.NewString(), id.NewString()
	user.ConversationID, reply.ConversationID = conversationID, conversationID
	user.CreatedAt, reply.CreatedAt = now, now
	conv.Messages = append(conv.Messages, user, reply)
	if conv.Title == "" {
		conv.Title = chat.DeriveTitle(user.Content)
	}
	conv.UpdatedAt = now
	return cloneConversation(conv), nil
}

func cloneConversation(conv *model.Conversation) model.Conversation {
	out := *conv
	out.Messages = slices.Clone(conv.Messages)
	return out
}
