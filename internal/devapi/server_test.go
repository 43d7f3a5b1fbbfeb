package devapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"laivdata.app/agentdesk/common/llm"
	"laivdata.app/agentdesk/core/config"
	"laivdata.app/agentdesk/internal/chat"
	"laivdata.app/agentdesk/internal/devapi"
	"laivdata.app/agentdesk/internal/model"
	"laivdata.app/agentdesk/internal/platform"
)

type fakeChatClient struct {
	last llm.ChatRequest
	err  error
}

func (f *fakeChatClient) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: "I'm well!", PromptTokens: 5, CompletionTokens: 4}, nil
}

func (f *fakeChatClient) Model() string { return "fake" }

var _ = Describe("Server", func() {
	var (
		ctx    context.Context
		store  *devapi.Store
		server *httptest.Server
		client *platform.Client
		chatLM *fakeChatClient
	)

	BeforeEach(func() {
		ctx = context.Background()
		gin.SetMode(gin.TestMode)
		store = devapi.NewStore(nil)
		store.PutAgent(model.Agent{ID: "agent-1", Name: "Helpful Assistant", IsActive: true})
		chatLM = &fakeChatClient{}

		engine := gin.New()
		devapi.NewServer(store, devapi.NewLLMReplier(chatLM, "Be brief.", 256), "dev-token").Routes(engine)
		server = httptest.NewServer(engine)
		DeferCleanup(server.Close)

		client = platform.New(config.PlatformConfig{BaseURL: server.URL, APIToken: "dev-token", Timeout: 5 * time.Second})
	})

	It("rejects requests without the token", func() {
		anon := platform.New(config.PlatformConfig{BaseURL: server.URL})
		_, err := anon.GetAgent(ctx, "agent-1")
		Expect(platform.StatusOf(err)).To(Equal(http.StatusUnauthorized))
	})

	It("runs a full session through the platform client", func() {
		ctrl := chat.NewController(client, "agent-1")

		agent, err := ctrl.LoadAgent(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(agent.Name).To(Equal("Helpful Assistant"))

		Expect(ctrl.SendMessage(ctx, "How are you?", nil)).To(Succeed())
		active, ok := ctrl.ActiveConversation()
		Expect(ok).To(BeTrue())
		Expect(ctrl.Messages()).To(HaveLen(2))
		Expect(ctrl.Messages()[1].TokensUsed).To(Equal(9))
		Expect(chatLM.last.Messages[0]).To(Equal(llm.Message{Role: "system", Content: "Be brief."}))

		Expect(ctrl.LoadConversations(ctx)).To(Succeed())
		summaries := ctrl.Conversations()
		Expect(summaries).To(HaveLen(1))
		Expect(summaries[0].ID).To(Equal(active))
		Expect(summaries[0].Title).To(Equal("How are you?"))
		Expect(summaries[0].AgentName).To(Equal("Helpful Assistant"))
		Expect(summaries[0].MessageCount).To(Equal(2))

		ctrl.ClearMessages()
		Expect(ctrl.LoadConversation(ctx, active)).To(Succeed())
		Expect(ctrl.Messages()).To(HaveLen(2))

		Expect(ctrl.RenameConversation(ctx, active, "Small talk")).To(Succeed())
		conv, err := store.Conversation(active)
		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Title).To(Equal("Small talk"))

		Expect(ctrl.DeleteConversation(ctx, active)).To(Succeed())
		_, err = client.GetConversation(ctx, active)
		Expect(platform.IsNotFound(err)).To(BeTrue())
	})

	It("creates titled conversations with 201", func() {
		conv, err := client.CreateConversation(ctx, "agent-1", "Planning")
		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Title).To(Equal("Planning"))

		_, err = client.CreateConversation(ctx, "agent-x", "")
		Expect(platform.IsNotFound(err)).To(BeTrue())
	})

	It("reports reply failures as bad gateway", func() {
		chatLM.err = errors.New("rate limited")

		_, err := client.SendAgentMessage(ctx, "agent-1", model.MessageRequest{Content: "hi"})

		Expect(platform.StatusOf(err)).To(Equal(http.StatusBadGateway))
	})

	It("refuses a conversation of another agent", func() {
		store.PutAgent(model.Agent{ID: "agent-2", Name: "Other"})
		conv, err := store.CreateConversation("agent-2", "")
		Expect(err).NotTo(HaveOccurred())

		_, err = client.SendAgentMessage(ctx, "agent-1", model.MessageRequest{Content: "hi", ConversationID: conv.ID})

		Expect(platform.IsNotFound(err)).To(BeTrue())
	})
})

var _ = Describe("EchoReplier", func() {
	It("repeats the last message", func() {
		reply, err := devapi.EchoReplier{}.Reply(context.Background(), model.Agent{Name: "Bot"},
			[]model.Message{{Role: model.RoleUser, Content: "hello there"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Content).To(Equal("Bot heard: hello there"))
		Expect(reply.Tokens.Total).To(Equal(2 + 4))
	})
})
