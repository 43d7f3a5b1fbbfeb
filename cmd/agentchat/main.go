package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"laivdata.app/agentdesk/common/id"
	"laivdata.app/agentdesk/common/logger"
	"laivdata.app/agentdesk/core/config"
	"laivdata.app/agentdesk/internal/chat"
	"laivdata.app/agentdesk/internal/platform"
	"laivdata.app/agentdesk/internal/tui"
)

func main() {
	cfg, err := config.Load(config.ServiceTypeChat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// the screen belongs to the UI, logs go to a file
	logFile, err := os.OpenFile(cfg.Session.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger.SetupWithWriter(cfg, logFile)

	if err := id.Init(cfg.NodeID); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "agentdesk.chat.tui",
		AgentID:   logger.Ptr(cfg.Session.AgentID),
	})

	observer, events := tui.EventChannel(64)
	ctrl := chat.NewController(platform.New(cfg.Platform), cfg.Session.AgentID, chat.WithObserver(observer))
	defer ctrl.Close()

	slog.InfoContext(ctx, "agentchat starting", "platform", cfg.Platform.BaseURL)

	p := tea.NewProgram(tui.NewModel(ctx, ctrl, events), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
