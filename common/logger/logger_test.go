package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"laivdata.app/agentdesk/common/logger"
)

var _ = Describe("TraceHandler", func() {
	It("adds context fields to every record", func() {
		var buf bytes.Buffer
		log := slog.New(logger.NewTraceHandler(slog.NewJSONHandler(&buf, nil)))

		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			AgentID:   logger.Ptr("agent-1"),
			SessionID: logger.Ptr("s1"),
			Component: "agentdesk.chat.controller",
		})
		ctx = logger.WithLogFields(ctx, logger.LogFields{ConversationID: logger.Ptr("conv-9")})
		log.InfoContext(ctx, "message sent")

		var rec map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &rec)).To(Succeed())
		Expect(rec).To(HaveKeyWithValue("agent_id", "agent-1"))
		Expect(rec).To(HaveKeyWithValue("session_id", "s1"))
		Expect(rec).To(HaveKeyWithValue("conversation_id", "conv-9"))
		Expect(rec).To(HaveKeyWithValue("component", "agentdesk.chat.controller"))
		Expect(rec).NotTo(HaveKey("request_id"))
		Expect(rec).NotTo(HaveKey("trace_id"))
	})
})

var _ = Describe("WithLogFields", func() {
	It("keeps earlier values the newer fields leave unset", func() {
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			AgentID:   logger.Ptr("agent-1"),
			Component: "gateway",
		})
		ctx = logger.WithLogFields(ctx, logger.LogFields{AgentID: logger.Ptr("agent-2")})

		fields := logger.GetLogFields(ctx)
		Expect(*fields.AgentID).To(Equal("agent-2"))
		Expect(fields.Component).To(Equal("gateway"))
		Expect(fields.ConversationID).To(BeNil())
	})
})

var _ = DescribeTable("Truncate",
	func(s string, n int, want string) {
		Expect(logger.Truncate(s, n)).To(Equal(want))
	},
	Entry("short", "hello", 10, "hello"),
	Entry("cut", "hello world", 5, "hello..."),
	Entry("runes", "héllo", 2, "hé..."),
)
