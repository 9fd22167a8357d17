// Sage - personal assistant agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/normanking/sage/internal/agent"
	"github.com/normanking/sage/internal/brain"
	"github.com/normanking/sage/internal/channels"
	"github.com/normanking/sage/internal/channels/discord"
	"github.com/normanking/sage/internal/channels/slack"
	"github.com/normanking/sage/internal/channels/telegram"
	"github.com/normanking/sage/internal/config"
	"github.com/normanking/sage/internal/logging"
	"github.com/normanking/sage/internal/para"
	"github.com/normanking/sage/internal/retry"
	"github.com/normanking/sage/internal/store"
	"github.com/normanking/sage/internal/tui"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version")
	tuiMode := flag.Bool("tui", false, "Start in TUI mode")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Sage v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.Default()
		if saveErr := cfg.Save(*configPath); saveErr != nil {
			fmt.Fprintf(os.Stderr, "failed to write default config: %v\n", saveErr)
			os.Exit(1)
		}
	}

	logger := logging.NewWithConfig(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logger.Close()
	logger.Info("starting sage", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	manager, st, err := buildManager(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if *tuiMode {
		err = runTUI(ctx, manager)
	} else {
		err = runChannels(ctx, cfg, manager, logger)
	}
	if err != nil {
		logger.Error("sage exited with error", "error", err)
		os.Exit(1)
	}
}

// buildManager wires the orchestrator from configuration.
func buildManager(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*agent.Manager, store.Store, error) {
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	backend := brain.NewClient(cfg.Model)
	if err := backend.Ping(ctx); err != nil {
		logger.Warn("model backend ping failed, continuing anyway", "error", err)
	}

	var provider para.Provider
	if cfg.Para.Enabled {
		provider = para.NewClient(cfg.Para, logger)
	}

	manager := agent.New(agent.Config{
		Store:        st,
		Brain:        backend,
		Provider:     provider,
		Sink:         retry.NewLogSink(logger),
		Logger:       logger,
		Model:        cfg.Model,
		HistoryLimit: cfg.Agent.HistoryLimit,
		MemoryLimit:  cfg.Agent.MemoryLimit,
		PromptTurns:  cfg.Agent.PromptTurns,
	})

	return manager, st, nil
}

// runTUI starts the terminal chat interface.
func runTUI(ctx context.Context, manager *agent.Manager) error {
	return tui.New(manager, localUserID()).Run(ctx)
}

// runChannels starts the configured messaging adapters and dispatches turns
// until shutdown.
func runChannels(ctx context.Context, cfg *config.Config, manager *agent.Manager, logger *logging.Logger) error {
	router := channels.NewRouter()
	router.Register(telegram.New(cfg.Channels.Telegram, logger))
	router.Register(discord.New(cfg.Channels.Discord, logger))
	router.Register(slack.New(cfg.Channels.Slack, logger))

	if err := router.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}
	defer router.StopAll()

	dispatcher := channels.NewDispatcher(router, manager, logger)
	dispatcher.Run(ctx)
	return nil
}

// localUserID identifies the terminal user for TUI conversations.
func localUserID() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local-user"
}
