package service_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"laivdata.app/agentdesk/internal/chat"
	"laivdata.app/agentdesk/internal/model"
	"laivdata.app/agentdesk/internal/service"
)

type stubPlatform struct {
	chat.Platform
}

func (stubPlatform) SendAgentMessage(_ context.Context, agentID string, req model.MessageRequest) (*model.MessageResponse, error) {
	return &model.MessageResponse{Content: "ok", AgentID: agentID, ConversationID: "conv-1"}, nil
}

type recordingSink struct {
	mu      sync.Mutex
	events  map[string][]chat.Event
	deleted []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(map[string][]chat.Event)}
}

func (s *recordingSink) Observer(sessionID string) chat.Observer {
	return chat.ObserverFunc(func(_ context.Context, evt chat.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events[sessionID] = append(s.events[sessionID], evt)
	})
}

func (s *recordingSink) Delete(_ context.Context, sessionID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, sessionID+"/"+agentID)
	return nil
}

func (s *recordingSink) eventCount(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events[sessionID])
}

var _ = Describe("SessionService", func() {
	var (
		ctx   context.Context
		sink  *recordingSink
		now   time.Time
		clock func() time.Time
		svc   service.SessionService
	)

	BeforeEach(func() {
		ctx = context.Background()
		sink = newRecordingSink()
		now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
		clock = func() time.Time { return now }
		svc = service.NewSessionService(stubPlatform{}, sink, 30*time.Minute, chat.WithClock(clock))
	})

	It("returns the same controller for the same session and agent", func() {
		a := svc.Controller("s1", "agent-1")
		Expect(svc.Controller("s1", "agent-1")).To(BeIdenticalTo(a))
		Expect(svc.Controller("s1", "agent-2")).NotTo(BeIdenticalTo(a))
		Expect(svc.Controller("s2", "agent-1")).NotTo(BeIdenticalTo(a))
		Expect(svc.Len()).To(Equal(3))
	})

	It("routes controller events to the session's observer", func() {
		ctrl := svc.Controller("s1", "agent-1")
		Expect(ctrl.SendMessage(ctx, "hello", nil)).To(Succeed())

		Expect(sink.eventCount("s1")).To(BeNumerically(">", 0))
		Expect(sink.eventCount("s2")).To(BeZero())
	})

	It("closes a controller and its stream", func() {
		ctrl := svc.Controller("s1", "agent-1")

		Expect(svc.Close(ctx, "s1", "agent-1")).To(BeTrue())
		Expect(svc.Close(ctx, "s1", "agent-1")).To(BeFalse())

		Expect(ctrl.SendMessage(ctx, "hello", nil)).To(MatchError(chat.ErrClosed))
		Expect(sink.deleted).To(ConsistOf("s1/agent-1"))
		_, ok := svc.Lookup("s1", "agent-1")
		Expect(ok).To(BeFalse())
	})

	It("sweeps only idle controllers", func() {
		svc.Controller("idle", "agent-1")
		now = now.Add(20 * time.Minute)
		active := svc.Controller("active", "agent-1")
		now = now.Add(15 * time.Minute)

		Expect(svc.Sweep(ctx, now)).To(Equal(1))

		_, ok := svc.Lookup("idle", "agent-1")
		Expect(ok).To(BeFalse())
		got, ok := svc.Lookup("active", "agent-1")
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(active))
	})

	It("closes everything on shutdown", func() {
		svc.Controller("s1", "agent-1")
		svc.Controller("s2", "agent-1")

		svc.Shutdown(ctx)

		Expect(svc.Len()).To(BeZero())
		Expect(sink.deleted).To(HaveLen(2))
	})
})
