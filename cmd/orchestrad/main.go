// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Command orchestrad runs the multi-agent orchestration service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/go-a2a/orchestra"
	"github.com/go-a2a/orchestra/agent"
	"github.com/go-a2a/orchestra/config"
	"github.com/go-a2a/orchestra/server"
	"github.com/go-a2a/orchestra/server/event"
	"github.com/go-a2a/orchestra/server/handler"
	"github.com/go-a2a/orchestra/server/stream"
	"github.com/go-a2a/orchestra/server/task"
)

func init() {
	uuid.EnableRandPool()
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	bus, err := event.NewBus(event.BusConfig{
		MaxSize:       cfg.Bus.MaxSize,
		EventTTL:      cfg.Bus.EventTTL,
		SweepInterval: cfg.Bus.SweepInterval,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer bus.Close()

	taskStore, contextStore, err := buildStores(cfg.Store)
	if err != nil {
		return err
	}

	pushSender := task.NewHTTPPushNotificationSender(task.HTTPPushNotificationSenderConfig{
		TokenTTL: cfg.Push.TokenTTL,
		Logger:   logger,
	})

	coordinator := agent.NewCoordinator(agent.CoordinatorConfig{
		ClassifierConfig: agent.ClassifierConfig{
			ConfidenceCap:       cfg.Classifier.ConfidenceCap,
			ConfidenceIncrement: cfg.Classifier.ConfidenceIncrement,
			FallbackDomain:      cfg.Classifier.FallbackDomain,
			FallbackConfidence:  cfg.Classifier.FallbackConfidence,
		},
		TaskStore: taskStore,
		Logger:    logger,
	})

	reqHandler, err := handler.New(handler.Config{
		Executor:     coordinator,
		Bus:          bus,
		TaskStore:    taskStore,
		ContextStore: contextStore,
		PushSender:   pushSender,
	}, handler.WithLogger(logger))
	if err != nil {
		return err
	}
	defer reqHandler.Close()

	srv, err := server.New(server.Config{
		Bus:         bus,
		Coordinator: coordinator,
		Handler:     reqHandler,
		StreamConfig: stream.Config{
			WaitBudget:   cfg.Stream.WaitBudget,
			PollInterval: cfg.Stream.PollInterval,
			Logger:       logger,
		},
		HeartbeatInterval: cfg.Server.HeartbeatInterval,
	},
		server.WithEndpoint(cfg.Server.ListenAddress),
		server.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := registerStockAgents(ctx, srv, logger); err != nil {
		return err
	}

	go startCleanup(ctx, cfg.Store, taskStore, contextStore, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return srv.Shutdown(context.Background())
	}
}

// buildStores returns database-backed stores when a DSN is configured and
// in-memory stores otherwise.
func buildStores(cfg config.StoreConfig) (task.TaskStore, task.ContextStore, error) {
	if cfg.DatabaseDSN == "" {
		return task.NewInMemoryTaskStore(), task.NewInMemoryContextStore(), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	taskStore, err := task.NewDatabaseTaskStore(task.DatabaseStoreConfig{DB: db, CreateTables: true})
	if err != nil {
		return nil, nil, err
	}
	contextStore, err := task.NewDatabaseContextStore(task.DatabaseStoreConfig{DB: db, CreateTables: true})
	if err != nil {
		return nil, nil, err
	}
	return taskStore, contextStore, nil
}

// registerStockAgents wires the stock domain agents, each backed by an echo
// processor until a model-backed processor is configured.
func registerStockAgents(ctx context.Context, srv *server.Server, logger *slog.Logger) error {
	keywords := agent.DefaultClassifierKeywords()

	constructors := map[string]func(agent.Processor, *slog.Logger) (*agent.DomainAgent, error){
		agent.DomainOrchestrator: agent.NewOrchestratorAgent,
		agent.DomainCropping:     agent.NewCroppingAgent,
		agent.DomainBackground:   agent.NewBackgroundAgent,
		agent.DomainThumbnail:    agent.NewThumbnailGeneratorAgent,
		agent.DomainVideo:        agent.NewVideoAgent,
	}

	for domain, construct := range constructors {
		a, err := construct(echoProcessor(domain), logger)
		if err != nil {
			return err
		}
		if err := srv.RegisterAgent(ctx, domain, a, keywords[domain]); err != nil {
			return err
		}
	}
	return nil
}

// echoProcessor is the placeholder processor used when no model backend is
// configured. It acknowledges the request without triggering handoffs.
func echoProcessor(domain string) agent.Processor {
	return agent.ProcessorFunc(func(ctx context.Context, userInput string, history []orchestra.HistoryEntry, additional map[string]any) (string, error) {
		return fmt.Sprintf("[%s] received: %s", domain, userInput), nil
	})
}

// startCleanup periodically evicts tasks and contexts past the retention
// period.
func startCleanup(ctx context.Context, cfg config.StoreConfig, tasks task.TaskStore, contexts task.ContextStore, logger *slog.Logger) {
	if cfg.CleanupMaxAge <= 0 || cfg.CleanupInterval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removedTasks, err := tasks.CleanupOlderThan(ctx, cfg.CleanupMaxAge)
			if err != nil {
				logger.Warn("task cleanup failed", slog.Any("error", err))
			}
			removedContexts, err := contexts.CleanupOlderThan(ctx, cfg.CleanupMaxAge)
			if err != nil {
				logger.Warn("context cleanup failed", slog.Any("error", err))
			}
			if removedTasks > 0 || removedContexts > 0 {
				logger.Info("cleanup pass",
					slog.Int("tasks_removed", removedTasks),
					slog.Int("contexts_removed", removedContexts),
				)
			}
		}
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
