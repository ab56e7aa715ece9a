// SkyDesk - Airline Customer Service Turn Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/skydesk/internal/agent"
	"github.com/ashureev/skydesk/internal/api"
	"github.com/ashureev/skydesk/internal/catalog"
	"github.com/ashureev/skydesk/internal/config"
	"github.com/ashureev/skydesk/internal/feed"
	"github.com/ashureev/skydesk/internal/guardrail"
	"github.com/ashureev/skydesk/internal/identity"
	"github.com/ashureev/skydesk/internal/middleware"
	"github.com/ashureev/skydesk/internal/reasoning"
	"github.com/ashureev/skydesk/internal/store"
	"github.com/ashureev/skydesk/internal/tools"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "reasoning_backend", cfg.Reasoning.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if cfg.SeedDemoData {
		if err := repo.SeedDemoData(ctx); err != nil {
			slog.Error("Failed to seed demo data", "error", err)
			os.Exit(1)
		}
		slog.Info("Demo data seeded")
	}

	conversations := store.NewConversations(repo, logger)
	sweeperDone := store.StartMaintenanceWorker(ctx, conversations, cfg.Cache.SweepInterval, cfg.Cache.IdleTTL)
	slog.Info("Conversation cache worker started", "idle_ttl", cfg.Cache.IdleTTL, "sweep_interval", cfg.Cache.SweepInterval)

	registry, err := catalog.NewRegistry(tools.New(repo))
	if err != nil {
		slog.Error("Failed to build specialist registry", "error", err)
		os.Exit(1)
	}

	readiness := map[string]api.ReadinessCheck{"db": repo.Ping}

	// Reasoning capability and guardrail checker.
	var (
		reasoner reasoning.Reasoner
		checker  guardrail.Checker
	)
	switch cfg.Reasoning.Backend {
	case config.BackendGrpc:
		slog.Info("Connecting to reasoning service via gRPC", "address", cfg.Reasoning.Addr)
		grpcClient, err := reasoning.NewGrpcClient(reasoning.GrpcClientConfig{
			Address:        cfg.Reasoning.Addr,
			RequestTimeout: cfg.Reasoning.Timeout,
		}, logger)
		if err != nil {
			slog.Error("Failed to connect to reasoning service", "error", err)
			os.Exit(1)
		}
		defer grpcClient.Close()
		reasoner = grpcClient
		checker = grpcClient
		readiness["reasoning"] = grpcClient.Health
	default:
		chatModel, err := cfg.Reasoning.NewArkChatModel(ctx)
		if err != nil {
			slog.Error("Failed to initialize chat model", "error", err)
			os.Exit(1)
		}
		modelReasoner, err := reasoning.NewModelReasoner(chatModel, registry)
		if err != nil {
			slog.Error("Failed to initialize reasoner", "error", err)
			os.Exit(1)
		}
		modelReasoner.SetRequestTimeout(cfg.Reasoning.Timeout)
		reasoner = modelReasoner
		checker, err = guardrail.NewModelChecker(ctx, chatModel)
		if err != nil {
			slog.Error("Failed to initialize guardrail checker", "error", err)
			os.Exit(1)
		}
	}
	if cfg.Guardrail.Backend == config.GuardrailKeyword {
		checker = guardrail.DefaultKeywordChecker()
	}
	slog.Info("Reasoning initialized", "backend", cfg.Reasoning.Backend, "guardrail_backend", cfg.Guardrail.Backend)

	reportMode, err := guardrail.ParseReportMode(cfg.Guardrail.ReportMode)
	if err != nil {
		slog.Error("Invalid guardrail report mode", "error", err)
		os.Exit(1)
	}
	lockMode, err := agent.ParseLockMode(cfg.Turn.LockMode)
	if err != nil {
		slog.Error("Invalid turn lock mode", "error", err)
		os.Exit(1)
	}

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	hub := feed.NewHub(cfg.Origins(), cfg.IsDevelopment(), logger)

	orchestrator, err := agent.New(registry, conversations, guardrail.NewPipeline(checker, reportMode, logger), reasoner, agent.Options{
		LockMode:           lockMode,
		LockTimeout:        cfg.Turn.LockTimeout,
		MaxReasoningRounds: cfg.Turn.MaxReasoningRounds,
		Profiles:           identity.NewLoader(repo, logger),
		ConversationLog:    conversationLogger,
		Observers:          []agent.TurnObserver{hub},
		Logger:             logger,
	})
	if err != nil {
		slog.Error("Failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Stop()

	chatHandler := api.NewChatHandler(orchestrator, registry, repo, api.ChatHandlerConfig{
		MaxBodySize: cfg.MaxRequestBodyBytes,
		Limiter:     limiter,
		Readiness:   readiness,
		Logger:      logger,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.Origins()))

	chatHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/conversations/{conversationID}", hub.ServeHTTP)

	// Note: the websocket feed holds hijacked connections open, so there is
	// no WriteTimeout. Turns are bounded by TURN_LOCK_TIMEOUT and REASONING_TIMEOUT.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	<-sweeperDone

	slog.Info("Server stopped successfully")
}
