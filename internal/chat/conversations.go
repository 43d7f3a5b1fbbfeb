package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"laivdata.app/agentdesk/common/logger"
	"laivdata.app/agentdesk/internal/model"
)

// LoadAgent looks up the current agent for display. Its name replaces the
// placeholder used for conversations the directory learns about from sends.
// Failures are returned to the caller and leave the chat state alone.
func (c *Controller) LoadAgent(ctx context.Context) (*model.Agent, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	agentID, epoch := c.agentID, c.agentEpoch
	c.mu.Unlock()
	if agentID == "" {
		return nil, ErrNoAgent
	}

	ctx = logContext(ctx, agentID, "")
	agent, err := c.platform.GetAgent(ctx, agentID)
	if err != nil {
		slog.WarnContext(ctx, "failed to load agent", "error", err)
		return nil, fmt.Errorf("%w: loading agent %s: %w", ErrFetchFailed, agentID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.agentEpoch || c.closed {
		return nil, ErrSuperseded
	}
	c.agent = agent
	c.directory.SetFallbackAgentName(agent.Name)
	return agent, nil
}

// StartConversation creates an empty conversation and makes it active.
func (c *Controller) StartConversation(ctx context.Context, title string) (*model.ConversationSummary, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	agentID, epoch := c.agentID, c.agentEpoch
	c.mu.Unlock()
	if agentID == "" {
		return nil, ErrNoAgent
	}

	ctx = logContext(ctx, agentID, "")
	conv, err := c.platform.CreateConversation(ctx, agentID, strings.TrimSpace(title))
	if err != nil {
		return nil, c.failUpdate(ctx, fmt.Errorf("%w: creating conversation: %w", ErrUpdateFailed, err))
	}

	c.mu.Lock()
	if epoch != c.agentEpoch || c.closed {
		c.mu.Unlock()
		return nil, ErrSuperseded
	}
	c.touchLocked()
	summary := c.directory.Upsert(SummaryFromConversation(conv))
	evts := []Event{c.eventLocked(EventDirectoryChanged, conv.ID)}
	if c.activeID != conv.ID {
		c.activeID = conv.ID
		evts = append(evts, c.eventLocked(EventActiveChanged, conv.ID))
	}
	evts = append(evts, c.resetViewLocked()...)
	if len(conv.Messages) > 0 {
		c.messages.Replace(conv.Messages)
		evts = append(evts, c.eventLocked(EventMessagesReplaced, conv.ID))
	}
	evts = append(evts, c.forceStateLocked(StateLoaded))
	c.mu.Unlock()
	c.dispatch(ctx, evts)

	slog.InfoContext(ctx, "conversation started", "conversation_id", conv.ID)
	return &summary, nil
}

// RenameConversation changes a conversation title and mirrors it in the directory.
func (c *Controller) RenameConversation(ctx context.Context, conversationID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	c.mu.Lock()
	agentID, epoch := c.agentID, c.agentEpoch
	c.mu.Unlock()
	ctx = logContext(ctx, agentID, conversationID)

	conv, err := c.platform.UpdateConversationTitle(ctx, conversationID, title)
	if err != nil {
		return c.failUpdate(ctx, fmt.Errorf("%w: renaming conversation %s: %w", ErrUpdateFailed, conversationID, err))
	}

	patch := model.SummaryPatch{ID: conversationID, Title: model.Ptr(title)}
	if conv != nil {
		if conv.Title != "" {
			patch.Title = model.Ptr(conv.Title)
		}
		if !conv.UpdatedAt.IsZero() {
			patch.UpdatedAt = model.Ptr(conv.UpdatedAt)
		}
	}

	c.mu.Lock()
	if epoch != c.agentEpoch || c.closed {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if _, ok := c.directory.Get(conversationID); !ok {
		c.mu.Unlock()
		return nil
	}
	c.directory.Upsert(patch)
	evts := []Event{c.eventLocked(EventDirectoryChanged, conversationID)}
	c.mu.Unlock()
	c.dispatch(ctx, evts)
	return nil
}

// DeleteConversation removes a conversation. Deleting the active one also
// clears the selection and the message view.
func (c *Controller) DeleteConversation(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	agentID, epoch := c.agentID, c.agentEpoch
	c.mu.Unlock()
	ctx = logContext(ctx, agentID, conversationID)

	if err := c.platform.DeleteConversation(ctx, conversationID); err != nil {
		return c.failUpdate(ctx, fmt.Errorf("%w: deleting conversation %s: %w", ErrUpdateFailed, conversationID, err))
	}

	c.mu.Lock()
	if epoch != c.agentEpoch || c.closed {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.touchLocked()
	var evts []Event
	if c.directory.Remove(conversationID) {
		evts = append(evts, c.eventLocked(EventDirectoryChanged, conversationID))
	}
	if c.activeID == conversationID {
		c.activeID = ""
		evts = append(evts, c.eventLocked(EventActiveChanged, ""))
		evts = append(evts, c.resetViewLocked()...)
	}
	c.mu.Unlock()
	c.dispatch(ctx, evts)

	slog.InfoContext(ctx, "conversation deleted")
	return nil
}

// failUpdate surfaces err on the error field without moving the state machine.
func (c *Controller) failUpdate(ctx context.Context, err error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return err
	}
	c.errMsg = err.Error()
	evts := []Event{c.eventLocked(EventError, "")}
	c.mu.Unlock()
	c.dispatch(ctx, evts)
	slog.WarnContext(ctx, "conversation update failed", "error", logger.Truncate(err.Error(), 200))
	return err
}
