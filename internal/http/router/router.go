package router

import (
	"github.com/gin-gonic/gin"

	"laivdata.app/agentdesk/internal/http/handler"
	"laivdata.app/agentdesk/internal/http/middleware"
	"laivdata.app/agentdesk/internal/service"
)

type RouterConfig struct {
	Sessions service.SessionService
	// Events is nil when Redis is not configured; the stream endpoint then
	// answers 503.
	Events handler.EventReader
}

func SetupRoutes(router *gin.Engine, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "sessions": cfg.Sessions.Len()})
	})

	v1 := router.Group("/api/v1", middleware.Session())
	{
		sessionHandler := handler.NewSessionHandler(cfg.Sessions)
		streamHandler := handler.NewSessionStreamHandler(cfg.Events, 0)
		SessionRouter(v1.Group("/agents/:agent_id"), sessionHandler, streamHandler)
	}
}
