package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"laivdata.app/agentdesk/common/id"
	"laivdata.app/agentdesk/common/logger"
	"laivdata.app/agentdesk/common/otel"
	"laivdata.app/agentdesk/core/config"
	"laivdata.app/agentdesk/internal/cache"
	"laivdata.app/agentdesk/internal/chat"
	"laivdata.app/agentdesk/internal/events"
	"laivdata.app/agentdesk/internal/http/middleware"
	httprouter "laivdata.app/agentdesk/internal/http/router"
	"laivdata.app/agentdesk/internal/platform"
	"laivdata.app/agentdesk/internal/service"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeGateway)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "agentdesk gateway starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	var (
		platformAPI chat.Platform = platform.New(cfg.Platform)
		sink        service.EventSink
		eventReader *events.Reader
	)

	if cfg.Redis.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
			os.Exit(1)
		}

		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.InfoContext(ctx, "redis connected", "stream_prefix", cfg.Redis.StreamPrefix)

		platformAPI = cache.New(platformAPI, redisClient, cfg.Redis.CachePrefix, cfg.Redis.CacheTTL, nil)
		sink = events.NewPublisher(redisClient, cfg.Redis.StreamPrefix, cfg.Redis.StreamMaxLen, nil)
		eventReader = events.NewReader(redisClient, cfg.Redis.StreamPrefix)
	} else {
		slog.InfoContext(ctx, "redis disabled: no list cache, no event stream")
	}

	sessions := service.NewSessionService(platformAPI, sink, cfg.Session.IdleTTL)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	routerCfg := httprouter.RouterConfig{Sessions: sessions}
	if eventReader != nil {
		routerCfg.Events = eventReader
	}
	router := setupRouter(cfg, routerCfg)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Sends wait on the agent; the SSE stream clears its own deadline.
		WriteTimeout: cfg.Platform.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go sweepIdleSessions(sweepCtx, sessions, cfg.Session.SweepInterval)

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}
	sessions.Shutdown(shutdownCtx)

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, routerCfg httprouter.RouterConfig) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, routerCfg)

	return router
}

func sweepIdleSessions(ctx context.Context, sessions service.SessionService, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sessions.Sweep(ctx, now)
		}
	}
}

const banner = `
 █████╗  ██████╗ ███████╗███╗   ██╗████████╗██████╗ ███████╗███████╗██╗  ██╗
██╔══██╗██╔════╝ ██╔════╝████╗  ██║╚══██╔══╝██╔══██╗██╔════╝██╔════╝██║ ██╔╝
███████║██║  ███╗█████╗  ██╔██╗ ██║   ██║   ██║  ██║█████╗  ███████╗█████╔╝
██╔══██║██║   ██║██╔══╝  ██║╚██╗██║   ██║   ██║  ██║██╔══╝  ╚════██║██╔═██╗
██║  ██║╚██████╔╝███████╗██║ ╚████║   ██║   ██████╔╝███████╗███████║██║  ██╗
╚═╝  ╚═╝ ╚═════╝ ╚══════╝╚═╝  ╚═══╝   ╚═╝   ╚═════╝ ╚══════╝╚══════╝╚═╝  ╚═╝
`
