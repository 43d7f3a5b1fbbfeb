package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"laivdata.app/agentdesk/internal/chat"
	"laivdata.app/agentdesk/internal/model"
	"laivdata.app/agentdesk/internal/platform"
)

type fakePlatform struct {
	mu      sync.Mutex
	convs   map[string]*model.Conversation
	next    int
	sendErr error
}

func newFakePlatform() *fakePlatform {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return &fakePlatform{convs: map[string]*model.Conversation{
		"conv-1": {
			ID: "conv-1", Title: "Trip planning", AgentID: "agent-1", UpdatedAt: base,
			Messages: []model.Message{
				{ID: "m1", ConversationID: "conv-1", Role: model.RoleUser, Content: "Plan a trip to Lisbon"},
				{ID: "m2", ConversationID: "conv-1", Role: model.RoleAssistant, Content: "Three days is plenty."},
			},
		},
		"conv-2": {
			ID: "conv-2", Title: "Recipes", AgentID: "agent-1", UpdatedAt: base.Add(time.Hour),
			Messages: []model.Message{
				{ID: "m3", ConversationID: "conv-2", Role: model.RoleUser, Content: "Soup ideas?"},
				{ID: "m4", ConversationID: "conv-2", Role: model.RoleAssistant, Content: "Try a gazpacho."},
			},
		},
	}, next: 3}
}

func (p *fakePlatform) GetAgent(_ context.Context, agentID string) (*model.Agent, error) {
	return &model.Agent{ID: agentID, Name: "Travel Buddy"}, nil
}

func (p *fakePlatform) ListConversations(_ context.Context, agentID string) ([]model.ConversationSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.ConversationSummary
	for _, c := range p.convs {
		out = append(out, model.ConversationSummary{
			ID: c.ID, Title: c.Title, AgentID: agentID, AgentName: "Travel Buddy",
			UpdatedAt: c.UpdatedAt, MessageCount: len(c.Messages),
		})
	}
	return out, nil
}

func (p *fakePlatform) GetConversation(_ context.Context, conversationID string) (*model.Conversation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.convs[conversationID]
	if !ok {
		return nil, &platform.APIError{Status: 404, Message: "Conversation not found"}
	}
	cp := *c
	cp.Messages = append([]model.Message(nil), c.Messages...)
	return &cp, nil
}

func (p *fakePlatform) SendAgentMessage(_ context.Context, agentID string, req model.MessageRequest) (*model.MessageResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return nil, p.sendErr
	}
	id := req.ConversationID
	if id == "" {
		id = fmt.Sprintf("conv-%d", p.next)
		p.next++
		p.convs[id] = &model.Conversation{ID: id, AgentID: agentID, UpdatedAt: time.Now()}
	}
	return &model.MessageResponse{Content: "echo: " + req.Content, AgentID: agentID, ConversationID: id}, nil
}

func (p *fakePlatform) CreateConversation(_ context.Context, agentID, title string) (*model.Conversation, error) {
	return nil, errors.New("not used")
}

func (p *fakePlatform) UpdateConversationTitle(_ context.Context, conversationID, title string) (*model.Conversation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.convs[conversationID]
	c.Title = title
	cp := *c
	return &cp, nil
}

func (p *fakePlatform) DeleteConversation(_ context.Context, conversationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.convs, conversationID)
	return nil
}

// drain runs cmd and feeds its messages back into the model until nothing is
// left. Commands that do not return promptly, like cursor blinks, are dropped.
func drain(m Model, cmd tea.Cmd) Model {
	if cmd == nil {
		return m
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(200 * time.Millisecond):
		return m
	}

	switch msg := msg.(type) {
	case nil, tea.QuitMsg:
		return m
	case tea.BatchMsg:
		for _, c := range msg {
			m = drain(m, c)
		}
		return m
	}
	next, cmd := m.Update(msg)
	return drain(next.(Model), cmd)
}

func press(m Model, k tea.KeyMsg) Model {
	next, cmd := m.Update(k)
	return drain(next.(Model), cmd)
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	escKey   = tea.KeyMsg{Type: tea.KeyEsc}
	tabKey   = tea.KeyMsg{Type: tea.KeyTab}
)

var _ = Describe("Model", func() {
	var (
		ctx  context.Context
		fake *fakePlatform
		ctrl *chat.Controller
		m    Model
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = newFakePlatform()
		ctrl = chat.NewController(fake, "agent-1")
		m = NewModel(ctx, ctrl, nil)
		m = drain(m, m.Init())
	})

	It("loads the agent, the conversation list and the most recent conversation", func() {
		Expect(m.agentName).To(Equal("Travel Buddy"))
		Expect(m.conversations).To(HaveLen(2))
		Expect(m.conversations[0].ID).To(Equal("conv-2"))
		Expect(m.snap.ActiveConversationID).To(Equal("conv-2"))
		Expect(m.snap.Messages).To(HaveLen(2))

		view := m.View()
		Expect(view).To(ContainSubstring("Travel Buddy"))
		Expect(view).To(ContainSubstring("Recipes"))
		Expect(view).To(ContainSubstring("Trip planning"))
	})

	It("opens the selected conversation", func() {
		m = press(m, keys("j"))
		Expect(m.cursor).To(Equal(1))

		m = press(m, enterKey)

		Expect(m.mode).To(Equal(modeChat))
		Expect(m.loadingID).To(BeEmpty())
		Expect(m.snap.ActiveConversationID).To(Equal("conv-1"))
		view := m.View()
		Expect(view).To(ContainSubstring("Trip planning"))
		Expect(view).To(ContainSubstring("Three days is plenty."))
	})

	It("starts a new conversation with the next send", func() {
		m = press(m, keys("n"))
		Expect(m.mode).To(Equal(modeChat))
		Expect(m.snap.ActiveConversationID).To(BeEmpty())
		Expect(m.View()).To(ContainSubstring("New conversation"))

		m = press(m, keys("Hello there"))
		next, cmd := m.Update(enterKey)
		m = next.(Model)
		Expect(m.View()).To(ContainSubstring("waiting for reply"))
		Expect(m.input.Value()).To(BeEmpty())

		m = drain(m, cmd)

		Expect(m.pending).To(BeEmpty())
		Expect(m.snap.ActiveConversationID).To(Equal("conv-3"))
		Expect(m.snap.Messages).To(HaveLen(2))
		Expect(m.snap.Messages[1].Content).To(Equal("echo: Hello there"))
		Expect(m.conversations[0].ID).To(Equal("conv-3"))
		Expect(m.conversations[0].Title).To(Equal("Hello there"))
	})

	It("ignores a blank prompt", func() {
		m = press(m, keys("n"))
		m = press(m, keys("   "))

		next, cmd := m.Update(enterKey)
		Expect(cmd).To(BeNil())
		Expect(next.(Model).pending).To(BeEmpty())
	})

	It("shows a failed send until the error is dismissed", func() {
		fake.sendErr = &platform.APIError{Status: 500, Message: "model overloaded"}
		m = press(m, tabKey)
		Expect(m.mode).To(Equal(modeChat))

		m = press(m, keys("Anything else?"))
		m = press(m, enterKey)

		Expect(m.snap.Messages).To(HaveLen(2))
		Expect(m.View()).To(ContainSubstring("model overloaded"))

		m = press(m, tea.KeyMsg{Type: tea.KeyCtrlE})
		Expect(m.errorText()).To(BeEmpty())
	})

	It("restores a prompt the controller rejected", func() {
		m.mode = modeChat
		next, _ := m.Update(opDoneMsg{op: opSend, content: "hi again", err: chat.ErrSendInFlight})
		m = next.(Model)

		Expect(m.input.Value()).To(Equal("hi again"))
		Expect(m.status).To(Equal(chat.ErrSendInFlight.Error()))
	})

	It("discards a load result for a conversation no longer being opened", func() {
		m.loadingID = "conv-1"
		next, _ := m.Update(opDoneMsg{op: opLoad, conversationID: "conv-2"})
		Expect(next.(Model).loadingID).To(Equal("conv-1"))
	})

	It("clears the message view", func() {
		m = press(m, tabKey)
		m = press(m, tea.KeyMsg{Type: tea.KeyCtrlL})

		Expect(m.snap.Messages).To(BeEmpty())
		Expect(m.snap.ActiveConversationID).To(Equal("conv-2"))
	})

	It("renames the selected conversation", func() {
		m = press(m, keys("r"))
		Expect(m.mode).To(Equal(modeRename))
		Expect(m.renameInput.Value()).To(Equal("Recipes"))

		m = press(m, tea.KeyMsg{Type: tea.KeyCtrlU})
		m = press(m, keys("Weeknight dinners"))
		m = press(m, enterKey)

		Expect(m.mode).To(Equal(modeList))
		Expect(m.conversations[0].Title).To(Equal("Weeknight dinners"))
		Expect(m.View()).To(ContainSubstring("Weeknight dinners"))
	})

	It("rejects a blank rename without calling the platform", func() {
		m = press(m, keys("r"))
		m = press(m, tea.KeyMsg{Type: tea.KeyCtrlU})
		m = press(m, enterKey)

		Expect(m.status).To(Equal(chat.ErrEmptyTitle.Error()))
		Expect(m.conversations[0].Title).To(Equal("Recipes"))
	})

	It("deletes the selected conversation", func() {
		m = press(m, keys("d"))

		Expect(m.conversations).To(HaveLen(1))
		Expect(m.conversations[0].ID).To(Equal("conv-1"))
		Expect(m.snap.ActiveConversationID).To(BeEmpty())
		Expect(m.snap.Messages).To(BeEmpty())
	})

	It("returns to the list on esc and quits on q", func() {
		m = press(m, tabKey)
		m = press(m, escKey)
		Expect(m.mode).To(Equal(modeList))

		next, cmd := m.Update(keys("q"))
		Expect(cmd()).To(Equal(tea.Quit()))
		Expect(next.(Model).Quitting()).To(BeTrue())
		Expect(next.(Model).View()).To(BeEmpty())
	})

	It("refreshes on controller events", func() {
		obs, events := EventChannel(16)
		ctrl = chat.NewController(fake, "agent-1", chat.WithObserver(obs))
		m = NewModel(ctx, ctrl, events)

		Expect(ctrl.LoadConversations(ctx)).To(Succeed())
		msg := waitForEvent(events)()
		next, cmd := m.Update(msg)

		Expect(cmd).NotTo(BeNil())
		Expect(next.(Model).conversations).To(HaveLen(2))
	})
})

var _ = Describe("EventChannel", func() {
	It("drops events while the channel is full", func() {
		obs, events := EventChannel(1)
		obs.OnEvent(context.Background(), chat.Event{Type: chat.EventError})
		obs.OnEvent(context.Background(), chat.Event{Type: chat.EventStateChanged})

		Expect(events).To(HaveLen(1))
		Expect((<-events).Type).To(Equal(chat.EventError))
	})
})

var _ = DescribeTable("wrapText",
	func(text string, width int, want []string) {
		Expect(wrapText(text, width)).To(Equal(want))
	},
	Entry("short line", "hello", 10, []string{"hello"}),
	Entry("long line", "abcdefgh", 3, []string{"abc", "def", "gh"}),
	Entry("blank lines kept", "a\n\nb", 10, []string{"a", "", "b"}),
	Entry("multibyte runes", "ééééé", 2, []string{"éé", "éé", "é"}),
)

var _ = DescribeTable("truncate",
	func(s string, width int, want string) {
		Expect(truncate(s, width)).To(Equal(want))
	},
	Entry("fits", "hello", 10, "hello"),
	Entry("cut", "hello world", 7, "hello.."),
	Entry("too narrow to mark", "hello", 2, "hello"),
)
