package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"laivdata.app/agentdesk/common/id"
	"laivdata.app/agentdesk/common/llm"
	"laivdata.app/agentdesk/common/logger"
	"laivdata.app/agentdesk/common/otel"
	"laivdata.app/agentdesk/core/config"
	"laivdata.app/agentdesk/internal/devapi"
	"laivdata.app/agentdesk/internal/http/middleware"
	"laivdata.app/agentdesk/internal/model"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeDevAPI)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	var replier devapi.Replier = devapi.EchoReplier{}
	if cfg.LLM.Enabled() {
		client, err := llm.NewChatClient(llm.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create llm client", "error", err)
			os.Exit(1)
		}
		replier = devapi.NewLLMReplier(client, cfg.DevAPI.SystemPrompt, cfg.LLM.MaxTokens)
		slog.InfoContext(ctx, "replies via llm", "provider", cfg.LLM.Provider, "model", client.Model())
	} else {
		slog.InfoContext(ctx, "no LLM_API_KEY set, echoing messages")
	}

	store := devapi.NewStore(nil)
	store.PutAgent(model.Agent{
		ID:          cfg.DevAPI.SeedAgentID,
		Name:        cfg.DevAPI.SeedAgentName,
		Description: "Local development agent",
		Type:        "chat",
		LLMProvider: cfg.LLM.Provider,
		IsActive:    true,
		Configuration: model.AgentConfiguration{
			SystemPrompt:  cfg.DevAPI.SystemPrompt,
			MaxTokens:     cfg.LLM.MaxTokens,
			HistoryLength: 20,
			LLMSettings:   model.LLMSettings{Provider: cfg.LLM.Provider, Model: cfg.LLM.Model},
		},
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	devapi.NewServer(store, replier, cfg.Platform.APIToken).Routes(router)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	go func() {
		slog.InfoContext(ctx, "dev platform api starting", "port", cfg.Port, "agent_id", cfg.DevAPI.SeedAgentID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}
	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}
}
