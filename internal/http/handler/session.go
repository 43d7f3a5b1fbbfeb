package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"laivdata.app/agentdesk/internal/chat"
	"laivdata.app/agentdesk/internal/http/dto"
	"laivdata.app/agentdesk/internal/http/middleware"
	"laivdata.app/agentdesk/internal/platform"
	"laivdata.app/agentdesk/internal/service"
)

type SessionHandler struct {
	sessions service.SessionService
}

func NewSessionHandler(sessions service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) controller(c *gin.Context) *chat.Controller {
	return h.sessions.Controller(middleware.GetSessionID(c.Request.Context()), c.Param("agent_id"))
}

func (h *SessionHandler) respond(c *gin.Context, status int, ctrl *chat.Controller) {
	sessionID := middleware.GetSessionID(c.Request.Context())
	c.JSON(status, dto.ToSessionResponse(sessionID, ctrl.Snapshot(), ctrl.Conversations()))
}

// Get returns the session snapshot, looking up the agent on first use.
func (h *SessionHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	ctrl := h.controller(c)

	if ctrl.Snapshot().Agent == nil {
		if _, err := ctrl.LoadAgent(ctx); err != nil && !errors.Is(err, chat.ErrSuperseded) {
			slog.WarnContext(ctx, "agent lookup failed", "agent_id", ctrl.AgentID(), "error", err)
		}
	}
	h.respond(c, http.StatusOK, ctrl)
}

// Close drops the session's controller for this agent.
func (h *SessionHandler) Close(c *gin.Context) {
	ctx := c.Request.Context()
	h.sessions.Close(ctx, middleware.GetSessionID(ctx), c.Param("agent_id"))
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) ListConversations(c *gin.Context) {
	ctrl := h.controller(c)
	if err := ctrl.LoadConversations(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ConversationListResponse{Conversations: nonNil(ctrl.Conversations())})
}

func (h *SessionHandler) StartConversation(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.controller(c).StartConversation(ctx, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

func (h *SessionHandler) RenameConversation(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctrl := h.controller(c)
	conversationID := c.Param("conversation_id")
	if err := ctrl.RenameConversation(ctx, conversationID, req.Title); err != nil {
		writeError(c, err)
		return
	}
	if summary, ok := ctrl.Directory().Get(conversationID); ok {
		c.JSON(http.StatusOK, summary)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": conversationID, "title": req.Title})
}

func (h *SessionHandler) DeleteConversation(c *gin.Context) {
	if err := h.controller(c).DeleteConversation(c.Request.Context(), c.Param("conversation_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetActive loads a conversation into the message view.
func (h *SessionHandler) SetActive(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctrl := h.controller(c)
	if err := ctrl.LoadConversation(ctx, req.ConversationID); err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, ctrl)
}

func (h *SessionHandler) ClearActive(c *gin.Context) {
	ctrl := h.controller(c)
	ctrl.ClearActiveConversation()
	h.respond(c, http.StatusOK, ctrl)
}

func (h *SessionHandler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctrl := h.controller(c)
	if err := ctrl.SendMessage(ctx, req.Content, req.Metadata); err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, ctrl)
}

func (h *SessionHandler) ClearMessages(c *gin.Context) {
	h.controller(c).ClearMessages()
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) ClearError(c *gin.Context) {
	ctrl := h.controller(c)
	ctrl.ClearError()
	h.respond(c, http.StatusOK, ctrl)
}

// writeError maps controller and platform errors to responses.
func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrSendInFlight), errors.Is(err, chat.ErrLoadInFlight),
		errors.Is(err, chat.ErrSuperseded), errors.Is(err, chat.ErrClosed):
		status = http.StatusConflict
	case chat.IsValidation(err):
		status = http.StatusBadRequest
	case platform.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrFetchFailed), errors.Is(err, chat.ErrSendFailed), errors.Is(err, chat.ErrUpdateFailed):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "session operation failed", "status", status, "error", err)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
