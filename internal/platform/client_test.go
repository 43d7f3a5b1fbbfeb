package platform_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"laivdata.app/agentdesk/common/logger"
	"laivdata.app/agentdesk/core/config"
	"laivdata.app/agentdesk/internal/chat"
	"laivdata.app/agentdesk/internal/model"
	"laivdata.app/agentdesk/internal/platform"
)

var _ chat.Platform = (*platform.Client)(nil)

var _ = Describe("Client", func() {
	var (
		ctx     context.Context
		server  *httptest.Server
		handler http.HandlerFunc
		calls   atomic.Int32
		client  *platform.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		calls.Store(0)
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			handler(w, r)
		}))
		client = platform.New(config.PlatformConfig{
			BaseURL:    server.URL + "/",
			APIToken:   "secret",
			Timeout:    5 * time.Second,
			MaxRetries: 2,
		}, platform.WithRetryWait(time.Millisecond, 5*time.Millisecond))
	})

	AfterEach(func() {
		server.Close()
	})

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		Expect(json.NewEncoder(w).Encode(v)).To(Succeed())
	}

	It("lists conversations with auth and a request id", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(http.MethodGet))
			Expect(r.URL.Path).To(Equal("/api/v1/conversations"))
			Expect(r.URL.Query().Get("agent_id")).To(Equal("agent-1"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer secret"))
			Expect(r.Header.Get("X-Request-Id")).To(Equal("req-42"))
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": "c1", "agent_id": "agent-1", "agent_name": "Bot", "updated_at": "2026-10-15T10:00:00Z", "message_count": 3},
			})
		}
		ctx = logger.WithLogFields(ctx, logger.LogFields{RequestID: logger.Ptr("req-42")})

		got, err := client.ListConversations(ctx, "agent-1")

		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
		Expect(got[0].AgentName).To(Equal("Bot"))
		Expect(got[0].MessageCount).To(Equal(3))
	})

	It("sends a message and decodes the reply", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/api/v1/agents/agent-1/message"))
			var req model.MessageRequest
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			Expect(req.Content).To(Equal("How are you?"))
			writeJSON(w, http.StatusOK, map[string]any{
				"content":         "I'm well!",
				"agent_id":        "agent-1",
				"conversation_id": "conv-9",
				"tokens":          map[string]int{"input": 5, "output": 4, "total": 9},
			})
		}

		resp, err := client.SendAgentMessage(ctx, "agent-1", model.MessageRequest{Content: "How are you?"})

		Expect(err).NotTo(HaveOccurred())
		Expect(resp.ConversationID).To(Equal("conv-9"))
		Expect(resp.TotalTokens()).To(Equal(9))
	})

	It("retries GETs on server errors", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			if calls.Load() < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": "conv-1", "title": "Trip"})
		}

		conv, err := client.GetConversation(ctx, "conv-1")

		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Title).To(Equal("Trip"))
		Expect(calls.Load()).To(Equal(int32(3)))
	})

	It("returns the last server error once GET retries run out", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "maintenance"})
		}

		_, err := client.GetConversation(ctx, "conv-1")

		Expect(platform.StatusOf(err)).To(Equal(http.StatusServiceUnavailable))
		Expect(err.Error()).To(ContainSubstring("maintenance"))
		Expect(calls.Load()).To(Equal(int32(3)))
	})

	It("never retries a send", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "model overloaded"})
		}

		_, err := client.SendAgentMessage(ctx, "agent-1", model.MessageRequest{Content: "hi"})

		var apiErr *platform.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.Status).To(Equal(http.StatusInternalServerError))
		Expect(apiErr.Message).To(Equal("model overloaded"))
		Expect(calls.Load()).To(Equal(int32(1)))
	})

	It("does not retry client errors", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Conversation not found"})
		}

		_, err := client.GetConversation(ctx, "missing")

		Expect(platform.IsNotFound(err)).To(BeTrue())
		Expect(calls.Load()).To(Equal(int32(1)))
	})

	It("requires 201 from create and defaults the title", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			var in map[string]string
			Expect(json.Unmarshal(body, &in)).To(Succeed())
			Expect(in).To(HaveKeyWithValue("title", "New conversation"))
			Expect(in).To(HaveKeyWithValue("agent_id", "agent-1"))
			writeJSON(w, http.StatusOK, map[string]string{"id": "c1"})
		}

		_, err := client.CreateConversation(ctx, "agent-1", "")

		Expect(platform.StatusOf(err)).To(Equal(http.StatusOK))
	})

	It("creates a conversation with the given title", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
			var in map[string]string
			Expect(json.NewDecoder(r.Body).Decode(&in)).To(Succeed())
			Expect(in).To(Equal(map[string]string{"agent_id": "agent-1", "title": "Trip"}))
			writeJSON(w, http.StatusCreated, map[string]string{"id": "c1", "agent_id": "agent-1", "title": "Trip"})
		}

		conv, err := client.CreateConversation(ctx, "agent-1", "Trip")

		Expect(err).NotTo(HaveOccurred())
		Expect(conv.ID).To(Equal("c1"))
		Expect(conv.Title).To(Equal("Trip"))
	})

	It("renames a conversation", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/api/v1/conversations/c1"))
			var in map[string]string
			Expect(json.NewDecoder(r.Body).Decode(&in)).To(Succeed())
			Expect(in).To(Equal(map[string]string{"title": "Renamed"}))
			writeJSON(w, http.StatusOK, map[string]string{"id": "c1", "title": "Renamed"})
		}

		conv, err := client.UpdateConversationTitle(ctx, "c1", "Renamed")

		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Title).To(Equal("Renamed"))
		Expect(calls.Load()).To(Equal(int32(1)))
	})

	It("does not retry a send when the connection drops", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			conn, _, err := http.NewResponseController(w).Hijack()
			Expect(err).NotTo(HaveOccurred())
			_ = conn.Close()
		}

		_, err := client.SendAgentMessage(ctx, "agent-1", model.MessageRequest{Content: "hi"})

		Expect(err).To(HaveOccurred())
		Expect(calls.Load()).To(Equal(int32(1)))
	})

	It("retries GETs when the connection drops", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			if calls.Load() < 2 {
				conn, _, err := http.NewResponseController(w).Hijack()
				Expect(err).NotTo(HaveOccurred())
				_ = conn.Close()
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": "agent-1", "name": "Bot"})
		}

		agent, err := client.GetAgent(ctx, "agent-1")

		Expect(err).NotTo(HaveOccurred())
		Expect(agent.Name).To(Equal("Bot"))
		Expect(calls.Load()).To(Equal(int32(2)))
	})

	It("deletes through the delete endpoint expecting 204", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/api/v1/conversations/c1/delete"))
			w.WriteHeader(http.StatusNoContent)
		}

		Expect(client.DeleteConversation(ctx, "c1")).To(Succeed())
	})

	DescribeTable("reads the error message from the body",
		func(body string, want string) {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, body)
			}
			_, err := client.GetAgent(ctx, "agent-1")
			var apiErr *platform.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Message).To(Equal(want))
		},
		Entry("detail string", `{"detail":"bad agent"}`, "bad agent"),
		Entry("detail list", `{"detail":[{"msg":"field required"},{"msg":"too long"}]}`, "field required; too long"),
		Entry("error field", `{"error":"denied"}`, "denied"),
		Entry("plain text", "nope", "nope"),
		Entry("empty body", "", "Bad Request"),
	)
})
