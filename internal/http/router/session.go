package router

import (
	"github.com/gin-gonic/gin"

	"laivdata.app/agentdesk/internal/http/handler"
)

func SessionRouter(rg *gin.RouterGroup, h *handler.SessionHandler, stream *handler.SessionStreamHandler) {
	rg.GET("/conversations", h.ListConversations)
	rg.POST("/conversations", h.StartConversation)
	rg.PATCH("/conversations/:conversation_id", h.RenameConversation)
	rg.DELETE("/conversations/:conversation_id", h.DeleteConversation)

	session := rg.Group("/session")
	session.GET("", h.Get)
	session.DELETE("", h.Close)
	session.PUT("/active", h.SetActive)
	session.DELETE("/active", h.ClearActive)
	session.POST("/messages", h.SendMessage)
	session.DELETE("/messages", h.ClearMessages)
	session.DELETE("/error", h.ClearError)
	session.GET("/stream", stream.Stream)
}
