package chat

import (
	"slices"

	"laivdata.app/agentdesk/internal/model"
)

// MessageStore holds the ordered messages of the active conversation. It is
// not safe for concurrent use; the Controller serializes access.
type MessageStore struct {
	messages []model.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Replace swaps the contents for messages, keeping their order.
func (s *MessageStore) Replace(messages []model.Message) {
	s.messages = slices.Clone(messages)
}

// Append adds messages at the end in the order given.
func (s *MessageStore) Append(messages ...model.Message) {
	s.messages = append(s.messages, messages...)
}

func (s *MessageStore) Clear() {
	s.messages = nil
}

func (s *MessageStore) Len() int {
	return len(s.messages)
}

// All returns a copy of the stored messages.
func (s *MessageStore) All() []model.Message {
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}
