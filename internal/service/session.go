package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"laivdata.app/agentdesk/internal/chat"
)

// EventSink receives the events of every controller the service creates.
type EventSink interface {
	Observer(sessionID string) chat.Observer
	Delete(ctx context.Context, sessionID, agentID string) error
}

// SessionService keeps one chat controller per (session, agent) pair.
type SessionService interface {
	// Controller returns the controller for the pair, creating it on first use.
	Controller(sessionID, agentID string) *chat.Controller
	Lookup(sessionID, agentID string) (*chat.Controller, bool)
	Close(ctx context.Context, sessionID, agentID string) bool
	// Sweep closes controllers idle since before now minus the idle TTL and
	// returns how many it closed.
	Sweep(ctx context.Context, now time.Time) int
	Len() int
	Shutdown(ctx context.Context)
}

type sessionKey struct {
	sessionID string
	agentID   string
}

type sessionService struct {
	platform chat.Platform
	sink     EventSink
	idleTTL  time.Duration
	opts     []chat.Option

	mu          sync.Mutex
	controllers map[sessionKey]*chat.Controller
}

func NewSessionService(platform chat.Platform, sink EventSink, idleTTL time.Duration, opts ...chat.Option) SessionService {
	return &sessionService{
		platform:    platform,
		sink:        sink,
		idleTTL:     idleTTL,
		opts:        opts,
		controllers: make(map[sessionKey]*chat.Controller),
	}
}

func (s *sessionService) Controller(sessionID, agentID string) *chat.Controller {
	key := sessionKey{sessionID, agentID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctrl, ok := s.controllers[key]; ok {
		return ctrl
	}

	opts := s.opts
	if s.sink != nil {
		opts = append(opts[:len(opts):len(opts)], chat.WithObserver(s.sink.Observer(sessionID)))
	}
	ctrl := chat.NewController(s.platform, agentID, opts...)
	s.controllers[key] = ctrl
	slog.Info("session controller created", "session_id", sessionID, "agent_id", agentID, "sessions", len(s.controllers))
	return ctrl
}

func (s *sessionService) Lookup(sessionID, agentID string) (*chat.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctrl, ok := s.controllers[sessionKey{sessionID, agentID}]
	return ctrl, ok
}

func (s *sessionService) Close(ctx context.Context, sessionID, agentID string) bool {
	key := sessionKey{sessionID, agentID}
	s.mu.Lock()
	ctrl, ok := s.controllers[key]
	delete(s.controllers, key)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.closeController(ctx, key, ctrl)
	return true
}

func (s *sessionService) Sweep(ctx context.Context, now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.idleTTL)

	idle := make(map[sessionKey]*chat.Controller)
	s.mu.Lock()
	for key, ctrl := range s.controllers {
		if ctrl.LastActivity().Before(cutoff) && !ctrl.State().Busy() {
			idle[key] = ctrl
			delete(s.controllers, key)
		}
	}
	remaining := len(s.controllers)
	s.mu.Unlock()

	for key, ctrl := range idle {
		s.closeController(ctx, key, ctrl)
	}
	if len(idle) > 0 {
		slog.InfoContext(ctx, "swept idle sessions", "closed", len(idle), "remaining", remaining)
	}
	return len(idle)
}

func (s *sessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.controllers)
}

func (s *sessionService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	all := s.controllers
	s.controllers = make(map[sessionKey]*chat.Controller)
	s.mu.Unlock()

	for key, ctrl := range all {
		s.closeController(ctx, key, ctrl)
	}
}

func (s *sessionService) closeController(ctx context.Context, key sessionKey, ctrl *chat.Controller) {
	ctrl.Close()
	if s.sink == nil {
		return
	}
	if err := s.sink.Delete(ctx, key.sessionID, key.agentID); err != nil {
		slog.WarnContext(ctx, "failed to delete session event stream",
			"session_id", key.sessionID, "agent_id", key.agentID, "error", err)
	}
}
