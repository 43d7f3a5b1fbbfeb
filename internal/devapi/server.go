package devapi

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"laivdata.app/agentdesk/common/logger"
	"laivdata.app/agentdesk/internal/model"
)

// Server serves the agent platform REST API from a Store. Errors use the
// platform's {"detail": "..."} body.
type Server struct {
	store   *Store
	replier Replier
	token   string
}

func NewServer(store *Store, replier Replier, token string) *Server {
	if replier == nil {
		replier = EchoReplier{}
	}
	return &Server{store: store, replier: replier, token: token}
}

func (s *Server) Routes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1", s.requireToken())
	{
		v1.GET("/agents", s.listAgents)
		v1.GET("/agents/:agent_id", s.getAgent)
		v1.POST("/agents/:agent_id/message", s.sendMessage)

		v1.GET("/conversations", s.listConversations)
		v1.POST("/conversations", s.createConversation)
		v1.GET("/conversations/:conversation_id", s.getConversation)
		v1.POST("/conversations/:conversation_id", s.renameConversation)
		v1.POST("/conversations/:conversation_id/delete", s.deleteConversation)
	}
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}
		c.Next()
	}
}

func (s *Server) listAgents(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Agents())
}

func (s *Server) getAgent(c *gin.Context) {
	agent, err := s.store.Agent(c.Param("agent_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (s *Server) listConversations(c *gin.Context) {
	agentID := c.Query("agent_id")
	if agentID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "agent_id is required"})
		return
	}
	c.JSON(http.StatusOK, s.store.Summaries(agentID))
}

func (s *Server) getConversation(c *gin.Context) {
	conv, err := s.store.Conversation(c.Param("conversation_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type createConversationRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
	Title   string `json:"title" binding:"max=255"`
}

func (s *Server) createConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	conv, err := s.store.CreateConversation(req.AgentID, req.Title)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

type renameConversationRequest struct {
	Title string `json:"title" binding:"required,max=255"`
}

func (s *Server) renameConversation(c *gin.Context) {
	var req renameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	conv, err := s.store.Rename(c.Param("conversation_id"), req.Title)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) deleteConversation(c *gin.Context) {
	if err := s.store.Delete(c.Param("conversation_id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// sendMessage answers a user message, creating the conversation when the
// request names none.
func (s *Server) sendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	var req model.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "content must not be empty"})
		return
	}

	agent, err := s.store.Agent(c.Param("agent_id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	var conv model.Conversation
	if req.ConversationID == "" {
		conv, err = s.store.CreateConversation(agent.ID, "")
	} else {
		conv, err = s.store.Conversation(req.ConversationID)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	if conv.AgentID != agent.ID {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Conversation not found"})
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		AgentID:        logger.Ptr(agent.ID),
		ConversationID: logger.Ptr(conv.ID),
		Component:      "agentdesk.devapi",
	})

	user := model.Message{Role: model.RoleUser, Content: req.Content, Metadata: req.Metadata}
	reply, err := s.replier.Reply(ctx, agent, append(conv.Messages, user))
	if err != nil {
		slog.ErrorContext(ctx, "reply generation failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"detail": "The agent could not answer"})
		return
	}

	assistant := model.Message{
		Role:       model.RoleAssistant,
		Content:    reply.Content,
		TokensUsed: reply.Tokens.Total,
	}
	if _, err := s.store.AppendExchange(conv.ID, user, assistant); err != nil {
		s.fail(c, err)
		return
	}

	slog.InfoContext(ctx, "agent replied", "tokens", reply.Tokens.Total)
	c.JSON(http.StatusOK, model.MessageResponse{
		Content:        reply.Content,
		AgentID:        agent.ID,
		ConversationID: conv.ID,
		Tokens:         &reply.Tokens,
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAgentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Agent not found"})
	case errors.Is(err, ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Conversation not found"})
	default:
		slog.ErrorContext(c.Request.Context(), "dev api request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	}
}
