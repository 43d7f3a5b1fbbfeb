package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"laivdata.app/agentdesk/internal/chat"
	"laivdata.app/agentdesk/internal/model"
)

type mode int

const (
	modeList mode = iota
	modeChat
	modeRename
)

// Controller is the part of chat.Controller the terminal client drives.
type Controller interface {
	LoadAgent(ctx context.Context) (*model.Agent, error)
	LoadConversations(ctx context.Context) error
	LoadConversation(ctx context.Context, conversationID string) error
	SendMessage(ctx context.Context, content string, metadata map[string]any) error
	RenameConversation(ctx context.Context, conversationID, title string) error
	DeleteConversation(ctx context.Context, conversationID string) error
	ClearActiveConversation()
	ClearMessages()
	ClearError()
	Snapshot() chat.Snapshot
	Conversations() []model.ConversationSummary
}

type op string

const (
	opList   op = "list"
	opLoad   op = "load"
	opSend   op = "send"
	opRename op = "rename"
	opDelete op = "delete"
)

type agentLoadedMsg struct {
	agent *model.Agent
	err   error
}

// opDoneMsg is sent when an async controller call returns.
type opDoneMsg struct {
	op             op
	conversationID string // identifies which load this result belongs to
	content        string // prompt of a send, restored when rejected
	err            error
}

type eventMsg chat.Event

type Model struct {
	ctx    context.Context
	ctrl   Controller
	events <-chan chat.Event

	agentName     string
	snap          chat.Snapshot
	conversations []model.ConversationSummary

	cursor     int
	offset     int // list scroll offset
	chatOffset int // lines scrolled up from the newest message
	width      int
	height     int
	mode       mode

	input       textinput.Model
	renameInput textinput.Model
	renameID    string

	loadingID string // conversation the latest load was started for
	pending   string // prompt shown while its send is unresolved
	status    string
	quitting  bool
}

// NewModel builds the terminal UI over ctrl. When events is non-nil the view
// refreshes on every controller event, not only when a call returns.
func NewModel(ctx context.Context, ctrl Controller, events <-chan chat.Event) Model {
	in := textinput.New()
	in.Placeholder = "Type a message..."
	in.CharLimit = 4000

	ri := textinput.New()
	ri.Placeholder = "title"
	ri.CharLimit = 200

	m := Model{
		ctx:         ctx,
		ctrl:        ctrl,
		events:      events,
		agentName:   chat.DefaultAgentName,
		input:       in,
		renameInput: ri,
		width:       100,
		height:      30,
	}
	m.sync()
	return m
}

// EventChannel returns an observer that forwards controller events to the
// returned channel. Events are dropped while the channel is full; the model
// re-reads the whole state on the next one.
func EventChannel(size int) (chat.Observer, <-chan chat.Event) {
	ch := make(chan chat.Event, size)
	obs := chat.ObserverFunc(func(_ context.Context, evt chat.Event) {
		select {
		case ch <- evt:
		default:
		}
	})
	return obs, ch
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadAgent(), m.loadConversations()}
	if m.events != nil {
		cmds = append(cmds, waitForEvent(m.events))
	}
	return tea.Batch(cmds...)
}

func (m Model) loadAgent() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		agent, err := ctrl.LoadAgent(ctx)
		return agentLoadedMsg{agent: agent, err: err}
	}
}

func (m Model) loadConversations() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return opDoneMsg{op: opList, err: ctrl.LoadConversations(ctx)}
	}
}

func (m Model) loadConversation(conversationID string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		err := ctrl.LoadConversation(ctx, conversationID)
		return opDoneMsg{op: opLoad, conversationID: conversationID, err: err}
	}
}

func (m Model) sendMessage(content string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		err := ctrl.SendMessage(ctx, content, nil)
		return opDoneMsg{op: opSend, content: content, err: err}
	}
}

func (m Model) renameConversation(conversationID, title string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		err := ctrl.RenameConversation(ctx, conversationID, title)
		return opDoneMsg{op: opRename, conversationID: conversationID, err: err}
	}
}

func (m Model) deleteConversation(conversationID string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		err := ctrl.DeleteConversation(ctx, conversationID)
		return opDoneMsg{op: opDelete, conversationID: conversationID, err: err}
	}
}

func waitForEvent(ch <-chan chat.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(evt)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil

	case agentLoadedMsg:
		if msg.err != nil {
			m.setStatus(msg.err)
			return m, nil
		}
		m.agentName = msg.agent.Name
		return m, nil

	case opDoneMsg:
		return m.updateOpDone(msg)

	case eventMsg:
		m.sync()
		return m, waitForEvent(m.events)

	case tea.KeyMsg:
		switch m.mode {
		case modeList:
			return m.updateList(msg)
		case modeChat:
			return m.updateChat(msg)
		case modeRename:
			return m.updateRename(msg)
		}
	}
	return m, nil
}

func (m Model) updateOpDone(msg opDoneMsg) (Model, tea.Cmd) {
	switch msg.op {
	case opLoad:
		// discard stale result if user already opened a different conversation
		if msg.conversationID != m.loadingID {
			return m, nil
		}
		m.loadingID = ""
	case opSend:
		m.pending = ""
		if chat.IsValidation(msg.err) && m.input.Value() == "" {
			m.input.SetValue(msg.content)
			m.input.CursorEnd()
		}
	}
	m.sync()
	m.setStatus(msg.err)
	if msg.err != nil {
		slog.Debug("controller call failed", "op", string(msg.op), "error", msg.err)
		return m, nil
	}

	// the list picks a default conversation without fetching it
	if msg.op == opList && m.snap.ActiveConversationID != "" && len(m.snap.Messages) == 0 &&
		m.loadingID == "" && !m.snap.Sending {
		m.loadingID = m.snap.ActiveConversationID
		return m, m.loadConversation(m.loadingID)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.clampOffset()
		}

	case "down", "j":
		if m.cursor < len(m.conversations)-1 {
			m.cursor++
			m.clampOffset()
		}

	case "home", "g":
		m.cursor = 0
		m.clampOffset()

	case "end", "G":
		m.cursor = max(0, len(m.conversations)-1)
		m.clampOffset()

	case "enter":
		if len(m.conversations) == 0 {
			return m, nil
		}
		id := m.conversations[m.cursor].ID
		m.loadingID = id
		m.chatOffset = 0
		m.status = ""
		return m.enterChat(m.loadConversation(id))

	case "tab":
		if m.snap.ActiveConversationID == "" {
			return m, nil
		}
		return m.enterChat(nil)

	case "n":
		m.ctrl.ClearActiveConversation()
		m.sync()
		m.loadingID = ""
		m.chatOffset = 0
		return m.enterChat(nil)

	case "r":
		if len(m.conversations) == 0 {
			return m, nil
		}
		s := m.conversations[m.cursor]
		m.renameID = s.ID
		m.renameInput.SetValue(s.Title)
		m.renameInput.CursorEnd()
		m.mode = modeRename
		return m, m.renameInput.Focus()

	case "d":
		if len(m.conversations) == 0 {
			return m, nil
		}
		return m, m.deleteConversation(m.conversations[m.cursor].ID)

	case "R":
		return m, m.loadConversations()
	}

	return m, nil
}

func (m Model) enterChat(load tea.Cmd) (tea.Model, tea.Cmd) {
	m.mode = modeChat
	focus := m.input.Focus()
	if load == nil {
		return m, focus
	}
	return m, tea.Batch(load, focus)
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.input.Blur()
		m.mode = modeList
		return m, nil

	case "enter":
		content := m.input.Value()
		if strings.TrimSpace(content) == "" {
			return m, nil
		}
		if m.snap.Sending {
			m.setStatus(chat.ErrSendInFlight)
			return m, nil
		}
		m.input.Reset()
		m.pending = content
		m.chatOffset = 0
		m.status = ""
		return m, m.sendMessage(content)

	case "ctrl+l":
		m.ctrl.ClearMessages()
		m.sync()
		m.chatOffset = 0
		return m, nil

	case "ctrl+e":
		m.ctrl.ClearError()
		m.status = ""
		m.sync()
		return m, nil

	case "pgup":
		m.chatOffset += m.chatVisibleRows()
		m.clampChatOffset()
		return m, nil

	case "pgdown":
		m.chatOffset -= m.chatVisibleRows()
		m.clampChatOffset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateRename(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.renameInput.Blur()
		m.mode = modeList
		return m, nil

	case "enter":
		title := m.renameInput.Value()
		m.renameInput.Blur()
		m.mode = modeList
		if strings.TrimSpace(title) == "" {
			m.setStatus(chat.ErrEmptyTitle)
			return m, nil
		}
		return m, m.renameConversation(m.renameID, title)
	}

	var cmd tea.Cmd
	m.renameInput, cmd = m.renameInput.Update(msg)
	return m, cmd
}

// sync re-reads the controller state.
func (m *Model) sync() {
	m.snap = m.ctrl.Snapshot()
	if m.snap.Agent != nil {
		m.agentName = m.snap.Agent.Name
	}
	m.conversations = m.ctrl.Conversations()
	if m.cursor >= len(m.conversations) {
		m.cursor = max(0, len(m.conversations)-1)
	}
	m.clampOffset()
	m.clampChatOffset()
}

// setStatus shows err unless the controller already surfaces it.
func (m *Model) setStatus(err error) {
	switch {
	case err == nil:
		m.status = ""
	case errors.Is(err, chat.ErrSuperseded):
	case m.snap.Error == err.Error():
		m.status = ""
	default:
		m.status = err.Error()
	}
}

func (m Model) visibleRows() int {
	// total height minus title, header, status and help lines
	rows := m.height - 5
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m *Model) clampOffset() {
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m Model) chatVisibleRows() int {
	// title, conversation header, input, status and help lines
	rows := m.height - 6
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m *Model) clampChatOffset() {
	maxOffset := len(m.renderChatContent()) - m.chatVisibleRows()
	if m.chatOffset > maxOffset {
		m.chatOffset = maxOffset
	}
	if m.chatOffset < 0 {
		m.chatOffset = 0
	}
}

// Quitting reports whether the user asked to leave.
func (m Model) Quitting() bool {
	return m.quitting
}
