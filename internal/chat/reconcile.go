package chat

import (
	"strings"
	"unicode/utf8"

	"laivdata.app/agentdesk/internal/model"
)

const (
	// TitleMaxRunes is the length of a title derived from a first message.
	TitleMaxRunes = 30
	titleEllipsis = "…"

	// DefaultAgentName names placeholder summaries until an authoritative
	// list refresh supplies the real agent name.
	DefaultAgentName = "AI Agent"
)

// DeriveTitle returns the first TitleMaxRunes runes of the trimmed content,
// followed by an ellipsis when the trimmed content is longer.
func DeriveTitle(content string) string {
	trimmed := strings.TrimSpace(content)
	if utf8.RuneCountInString(trimmed) <= TitleMaxRunes {
		return trimmed
	}
	return string([]rune(trimmed)[:TitleMaxRunes]) + titleEllipsis
}

// MergeSummary applies patch over existing. With no existing summary a new one
// is built, the agent name defaulting to fallbackAgentName and the message
// count to zero. A field absent from the patch never clears a present one.
func MergeSummary(existing *model.ConversationSummary, patch model.SummaryPatch, fallbackAgentName string) model.ConversationSummary {
	var out model.ConversationSummary
	if existing != nil {
		out = *existing
	} else {
		out = model.ConversationSummary{
			ID:        patch.ID,
			AgentName: fallbackAgentName,
		}
	}

	if patch.Title != nil {
		out.Title = *patch.Title
	}
	if patch.AgentID != nil {
		out.AgentID = *patch.AgentID
	}
	if patch.AgentName != nil && *patch.AgentName != "" {
		out.AgentName = *patch.AgentName
	}
	if patch.UpdatedAt != nil {
		out.UpdatedAt = *patch.UpdatedAt
	}
	if patch.LastMessage != nil {
		out.LastMessage = *patch.LastMessage
	}
	if patch.MessageCount != nil {
		out.MessageCount = *patch.MessageCount
	}
	return out
}

// PickDefaultActiveConversation returns the id of the most recently updated
// summary. Ties go to the first occurrence; ok is false for an empty list.
func PickDefaultActiveConversation(summaries []model.ConversationSummary) (id string, ok bool) {
	if len(summaries) == 0 {
		return "", false
	}
	best := 0
	for i := 1; i < len(summaries); i++ {
		if summaries[i].UpdatedAt.After(summaries[best].UpdatedAt) {
			best = i
		}
	}
	return summaries[best].ID, true
}

// SummaryFromConversation derives the patch a full fetch can vouch for. It
// carries no agent name: the fetch does not know it.
func SummaryFromConversation(conv *model.Conversation) model.SummaryPatch {
	patch := model.SummaryPatch{
		ID:           conv.ID,
		AgentID:      model.Ptr(conv.AgentID),
		UpdatedAt:    model.Ptr(conv.UpdatedAt),
		MessageCount: model.Ptr(len(conv.Messages)),
	}
	if conv.Title != "" {
		patch.Title = model.Ptr(conv.Title)
	}
	// An empty conversation has no last message; say so explicitly so a stale
	// one is not kept next to a zero count.
	lastMessage := ""
	if n := len(conv.Messages); n > 0 {
		lastMessage = conv.Messages[n-1].Content
	}
	patch.LastMessage = model.Ptr(lastMessage)
	return patch
}
