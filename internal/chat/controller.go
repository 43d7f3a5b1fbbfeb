package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"laivdata.app/agentdesk/common/id"
	"laivdata.app/agentdesk/common/logger"
	"laivdata.app/agentdesk/internal/model"
)

const component = "agentdesk.chat.controller"

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	AgentID              string          `json:"agent_id"`
	Agent                *model.Agent    `json:"agent,omitempty"`
	State                State           `json:"state"`
	Error                string          `json:"error,omitempty"`
	ActiveConversationID string          `json:"active_conversation_id,omitempty"`
	Messages             []model.Message `json:"messages"`
	Sending              bool            `json:"sending"`
}

type Option func(*Controller)

// WithClock sets the time source for message timestamps and summary bumps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator sets the generator for temporary message ids.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

// WithObserver registers an observer for committed changes.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// Controller owns the chat state of one agent at a time: the message view of
// the active conversation, the conversation directory and the active
// selection. It is safe for concurrent use. Network calls run outside the
// lock; generation counters decide whether their results still apply.
type Controller struct {
	platform  Platform
	now       func() time.Time
	newID     func() string
	observers []Observer

	mu        sync.Mutex
	agentID   string
	agent     *model.Agent
	state     State
	errMsg    string
	activeID  string
	messages  *MessageStore
	directory *Directory
	sending   bool
	closed    bool
	lastUsed  time.Time

	loadGen    uint64 // bumped by every load and every view reset
	listGen    uint64 // bumped by every list load and agent switch
	viewEpoch  uint64 // bumped whenever the message view stops belonging to its conversation
	agentEpoch uint64 // bumped on agent switch and close
}

func NewController(platform Platform, agentID string, opts ...Option) *Controller {
	c := &Controller{
		platform: platform,
		now:      time.Now,
		newID:    id.Temporary,
		agentID:  agentID,
		state:    StateIdle,
		messages: NewMessageStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.directory = NewDirectory(DefaultAgentName, c.now)
	c.lastUsed = c.now()
	return c
}

// Directory exposes the conversation directory for read access.
func (c *Controller) Directory() *Directory {
	return c.directory
}

// LoadConversation makes conversationID active and replaces the message view
// with its fetched messages. A later LoadConversation, navigation or reset
// supersedes it: its result is then dropped and ErrSuperseded returned.
func (c *Controller) LoadConversation(ctx context.Context, conversationID string) error {
	ctx = logContext(ctx, c.AgentID(), conversationID)
	sc := logger.StartSpan(ctx, "chat.load_conversation")
	defer sc.End()
	ctx = sc.Context()

	var evts []Event
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.touchLocked()
	c.loadGen++
	gen := c.loadGen
	c.viewEpoch++
	if c.activeID != conversationID {
		c.activeID = conversationID
		evts = append(evts, c.eventLocked(EventActiveChanged, conversationID))
	}
	if c.messages.Len() > 0 {
		c.messages.Clear()
		evts = append(evts, c.eventLocked(EventMessagesCleared, conversationID))
	}
	c.errMsg = ""
	evts = append(evts, c.setStateLocked(ctx, StateLoading))
	c.mu.Unlock()
	c.dispatch(ctx, evts)

	conv, err := c.platform.GetConversation(ctx, conversationID)

	evts = nil
	c.mu.Lock()
	if gen != c.loadGen || c.closed {
		c.mu.Unlock()
		slog.DebugContext(ctx, "discarding stale conversation load")
		return ErrSuperseded
	}

	if err != nil {
		ferr := fmt.Errorf("%w: loading conversation %s: %w", ErrFetchFailed, conversationID, err)
		sc.RecordError(ferr)
		c.messages.Clear()
		c.errMsg = ferr.Error()
		evts = append(evts, c.eventLocked(EventError, conversationID))
		evts = append(evts, c.setStateLocked(ctx, StateError))
		c.mu.Unlock()
		c.dispatch(ctx, evts)
		slog.WarnContext(ctx, "failed to load conversation", "error", err)
		return ferr
	}

	c.messages.Replace(conv.Messages)
	evt := c.eventLocked(EventMessagesReplaced, conv.ID)
	evt.Count = len(conv.Messages)
	evts = append(evts, evt)
	if conv.ID != "" && conv.ID != c.activeID {
		c.activeID = conv.ID
		evts = append(evts, c.eventLocked(EventActiveChanged, conv.ID))
	}
	c.directory.Upsert(SummaryFromConversation(conv))
	evts = append(evts, c.eventLocked(EventDirectoryChanged, conv.ID))
	evts = append(evts, c.setStateLocked(ctx, StateLoaded))
	c.mu.Unlock()
	c.dispatch(ctx, evts)

	slog.InfoContext(ctx, "conversation loaded", "messages", len(conv.Messages))
	return nil
}

// LoadConversations refreshes the directory from the server. When nothing is
// active, the most recently updated conversation becomes active; loading its
// messages is left to the caller.
func (c *Controller) LoadConversations(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.agentID == "" {
		c.mu.Unlock()
		return ErrNoAgent
	}
	c.touchLocked()
	c.listGen++
	gen, epoch, agentID := c.listGen, c.agentEpoch, c.agentID
	c.mu.Unlock()

	ctx = logContext(ctx, agentID, "")
	sc := logger.StartSpan(ctx, "chat.load_conversations")
	defer sc.End()
	ctx = sc.Context()

	summaries, err := c.platform.ListConversations(ctx, agentID)

	var evts []Event
	c.mu.Lock()
	if gen != c.listGen || epoch != c.agentEpoch || c.closed {
		c.mu.Unlock()
		slog.DebugContext(ctx, "discarding stale conversation list")
		return ErrSuperseded
	}

	if err != nil {
		ferr := fmt.Errorf("%w: listing conversations: %w", ErrFetchFailed, err)
		sc.RecordError(ferr)
		c.errMsg = ferr.Error()
		evts = append(evts, c.eventLocked(EventError, ""))
		// A load or send in flight owns the state; it reports its own outcome.
		if !c.state.Busy() {
			evts = append(evts, c.setStateLocked(ctx, StateError))
		}
		c.mu.Unlock()
		c.dispatch(ctx, evts)
		slog.WarnContext(ctx, "failed to list conversations", "error", err)
		return ferr
	}

	c.directory.ReplaceAll(summaries)
	evts = append(evts, c.eventLocked(EventDirectoryChanged, ""))
	// A send into a new conversation will pick the active id itself.
	if c.activeID == "" && !c.sending {
		if pick, ok := PickDefaultActiveConversation(summaries); ok {
			c.activeID = pick
			evts = append(evts, c.eventLocked(EventActiveChanged, pick))
		}
	}
	c.mu.Unlock()
	c.dispatch(ctx, evts)

	slog.InfoContext(ctx, "conversations listed", "count", len(summaries))
	return nil
}

// SendMessage posts content to the agent, in the active conversation or a new
// one when none is active. On success the user message and the agent reply
// are appended and the directory is updated; on failure nothing is appended.
// Blank content and a send while another send or a load is unresolved are
// rejected before any network call.
func (c *Controller) SendMessage(ctx context.Context, content string, metadata map[string]any) error {
	var evts []Event
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.agentID == "":
		c.mu.Unlock()
		return ErrNoAgent
	case strings.TrimSpace(content) == "":
		c.mu.Unlock()
		return ErrEmptyContent
	case c.sending:
		c.mu.Unlock()
		return ErrSendInFlight
	case c.state == StateLoading:
		c.mu.Unlock()
		return ErrLoadInFlight
	}
	c.touchLocked()
	c.sending = true
	prev := c.state
	conversationID, agentID := c.activeID, c.agentID
	viewEpoch, agentEpoch := c.viewEpoch, c.agentEpoch
	c.errMsg = ""

	ctx = logContext(ctx, agentID, conversationID)
	sc := logger.StartSpan(ctx, "chat.send_message")
	defer sc.End()
	ctx = sc.Context()

	evts = append(evts, c.setStateLocked(ctx, StateSending))
	c.mu.Unlock()
	c.dispatch(ctx, evts)

	resp, err := c.platform.SendAgentMessage(ctx, agentID, model.MessageRequest{
		Content:        content,
		ConversationID: conversationID,
		Metadata:       metadata,
	})
	if err == nil && resp.ConversationID == "" {
		err = fmt.Errorf("response carries no conversation_id")
	}

	evts = nil
	c.mu.Lock()
	if agentEpoch != c.agentEpoch || c.closed {
		c.mu.Unlock()
		slog.DebugContext(ctx, "discarding reply for a closed agent context")
		return ErrSuperseded
	}
	c.sending = false
	viewCurrent := viewEpoch == c.viewEpoch

	if err != nil {
		serr := fmt.Errorf("%w: %w", ErrSendFailed, err)
		sc.RecordError(serr)
		if viewCurrent {
			c.errMsg = serr.Error()
			evts = append(evts, c.eventLocked(EventError, conversationID))
			evts = append(evts, c.setStateLocked(ctx, prev))
		}
		c.mu.Unlock()
		c.dispatch(ctx, evts)
		slog.WarnContext(ctx, "failed to send message", "error", err)
		return serr
	}

	now := c.now()
	userMsg := model.Message{
		ID:             c.newID(),
		ConversationID: resp.ConversationID,
		Content:        content,
		Role:           model.RoleUser,
		CreatedAt:      now,
		Metadata:       metadata,
	}
	agentMsg := model.Message{
		ID:             c.newID(),
		ConversationID: resp.ConversationID,
		Content:        resp.Content,
		Role:           model.RoleAssistant,
		TokensUsed:     resp.TotalTokens(),
		CreatedAt:      now,
		Metadata:       resp.Metadata,
	}

	c.directory.IncrementOnSend(SendUpdate{
		ConversationID: resp.ConversationID,
		AgentID:        agentID,
		Delta:          2,
		LastMessage:    resp.Content,
		Prompt:         content,
	})
	evts = append(evts, c.eventLocked(EventDirectoryChanged, resp.ConversationID))

	if viewCurrent {
		c.messages.Append(userMsg, agentMsg)
		evt := c.eventLocked(EventMessagesAppended, resp.ConversationID)
		evt.Count = 2
		evts = append(evts, evt)
		if c.activeID == "" {
			c.activeID = resp.ConversationID
			evts = append(evts, c.eventLocked(EventActiveChanged, resp.ConversationID))
		}
		evts = append(evts, c.setStateLocked(ctx, StateLoaded))
	} else {
		slog.DebugContext(ctx, "reply arrived after the view changed; directory updated only",
			"reply_conversation_id", resp.ConversationID)
	}
	c.mu.Unlock()
	c.dispatch(ctx, evts)

	slog.InfoContext(ctx, "message sent",
		"reply_conversation_id", resp.ConversationID,
		"tokens", resp.TotalTokens(),
		"prompt", logger.Truncate(content, 60))
	return nil
}

// SetActiveConversation is the navigation boundary. Selecting a different
// conversation empties the message view and drops in-flight loads; fetching
// the new conversation is a separate LoadConversation.
func (c *Controller) SetActiveConversation(conversationID string) {
	c.mu.Lock()
	if c.closed || c.activeID == conversationID {
		c.mu.Unlock()
		return
	}
	c.touchLocked()
	c.activeID = conversationID
	evts := []Event{c.eventLocked(EventActiveChanged, conversationID)}
	evts = append(evts, c.resetViewLocked()...)
	c.mu.Unlock()
	c.dispatch(context.Background(), evts)
}

// ActiveConversation returns the active conversation id, if any.
func (c *Controller) ActiveConversation() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID, c.activeID != ""
}

// ClearActiveConversation deselects the active conversation, for starting a
// new one with the next send.
func (c *Controller) ClearActiveConversation() {
	c.SetActiveConversation("")
}

// ClearMessages empties the message view and returns to idle. Results of
// in-flight loads and sends no longer reach the view.
func (c *Controller) ClearMessages() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.touchLocked()
	evts := c.resetViewLocked()
	c.mu.Unlock()
	c.dispatch(context.Background(), evts)
}

// ClearError drops the surfaced error.
func (c *Controller) ClearError() {
	c.mu.Lock()
	if c.errMsg == "" && c.state != StateError {
		c.mu.Unlock()
		return
	}
	c.errMsg = ""
	var evts []Event
	if c.state == StateError {
		next := StateIdle
		if c.messages.Len() > 0 {
			next = StateLoaded
		}
		evts = append(evts, c.forceStateLocked(next))
	}
	c.mu.Unlock()
	c.dispatch(context.Background(), evts)
}

// SwitchAgent moves the controller to another agent. Messages, directory,
// active selection and error all belong to the previous agent and are reset.
func (c *Controller) SwitchAgent(agentID string) {
	c.mu.Lock()
	if c.closed || c.agentID == agentID {
		c.mu.Unlock()
		return
	}
	c.touchLocked()
	c.agentEpoch++
	c.listGen++
	c.sending = false
	c.agentID = agentID
	c.agent = nil
	c.activeID = ""
	c.directory.Reset()
	c.directory.SetFallbackAgentName(DefaultAgentName)
	evts := []Event{
		c.eventLocked(EventActiveChanged, ""),
		c.eventLocked(EventDirectoryChanged, ""),
	}
	evts = append(evts, c.resetViewLocked()...)
	c.mu.Unlock()
	c.dispatch(context.Background(), evts)
}

// Close marks the session as navigated away from. Results of in-flight
// operations are ignored and later operations fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.agentEpoch++
	c.loadGen++
	c.listGen++
	c.viewEpoch++
	c.sending = false
	c.messages.Clear()
	c.state = StateIdle
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		AgentID:              c.agentID,
		Agent:                c.agent,
		State:                c.state,
		Error:                c.errMsg,
		ActiveConversationID: c.activeID,
		Messages:             c.messages.All(),
		Sending:              c.sending,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the surfaced error message, empty when there is none.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

func (c *Controller) AgentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentID
}

func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages.All()
}

// Conversations returns the directory in recency order.
func (c *Controller) Conversations() []model.ConversationSummary {
	return c.directory.Summaries()
}

// LastActivity is the time of the latest operation, used for idle eviction.
func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// resetViewLocked empties the message view and invalidates in-flight loads.
func (c *Controller) resetViewLocked() []Event {
	c.loadGen++
	c.viewEpoch++
	c.errMsg = ""
	var evts []Event
	if c.messages.Len() > 0 {
		c.messages.Clear()
		evts = append(evts, c.eventLocked(EventMessagesCleared, c.activeID))
	}
	if c.state != StateIdle {
		evts = append(evts, c.forceStateLocked(StateIdle))
	}
	return evts
}

func (c *Controller) setStateLocked(ctx context.Context, to State) Event {
	if !CanTransition(c.state, to) {
		slog.WarnContext(ctx, "unexpected state transition", "from", c.state, "to", to)
	}
	return c.forceStateLocked(to)
}

func (c *Controller) forceStateLocked(to State) Event {
	c.state = to
	return c.eventLocked(EventStateChanged, c.activeID)
}

func (c *Controller) eventLocked(t EventType, conversationID string) Event {
	return Event{
		Type:           t,
		AgentID:        c.agentID,
		ConversationID: conversationID,
		State:          c.state,
		Error:          c.errMsg,
		At:             c.now(),
	}
}

func (c *Controller) touchLocked() {
	c.lastUsed = c.now()
}

func (c *Controller) dispatch(ctx context.Context, evts []Event) {
	if len(evts) == 0 || len(c.observers) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, evt := range evts {
		for _, o := range c.observers {
			o.OnEvent(ctx, evt)
		}
	}
}

func logContext(ctx context.Context, agentID, conversationID string) context.Context {
	fields := logger.LogFields{
		AgentID:   logger.Ptr(agentID),
		Component: component,
	}
	if conversationID != "" {
		fields.ConversationID = logger.Ptr(conversationID)
	}
	return logger.WithLogFields(ctx, fields)
}
