package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scriptwell/scriptwell-backend/internal/config"
	"github.com/scriptwell/scriptwell-backend/internal/data/db"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/handlers"
	jobhandlers "github.com/scriptwell/scriptwell-backend/internal/jobs/handlers"
	"github.com/scriptwell/scriptwell-backend/internal/jobs/queue"
	"github.com/scriptwell/scriptwell-backend/internal/jobs/worker"
	"github.com/scriptwell/scriptwell-backend/internal/middleware"
	"github.com/scriptwell/scriptwell-backend/internal/modules/analysis"
	analysissteps "github.com/scriptwell/scriptwell-backend/internal/modules/analysis/steps"
	"github.com/scriptwell/scriptwell-backend/internal/modules/chat"
	chatsteps "github.com/scriptwell/scriptwell-backend/internal/modules/chat/steps"
	"github.com/scriptwell/scriptwell-backend/internal/modules/script"
	scriptsteps "github.com/scriptwell/scriptwell-backend/internal/modules/script/steps"
	"github.com/scriptwell/scriptwell-backend/internal/observability"
	"github.com/scriptwell/scriptwell-backend/internal/platform/anthropic"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
	"github.com/scriptwell/scriptwell-backend/internal/platform/openai"
	"github.com/scriptwell/scriptwell-backend/internal/platform/redisdb"
	"github.com/scriptwell/scriptwell-backend/internal/realtime"
	"github.com/scriptwell/scriptwell-backend/internal/server"
)

// usageSink persists one token_usage row per LLM call.
type usageSink struct {
	usage repos.TokenUsageRepo
	log   *logger.Logger
}

func (s *usageSink) RecordLLMUsage(ctx context.Context, rec anthropic.UsageRecord) {
	row := &types.TokenUsage{
		Model:               rec.Model,
		InputTokens:         int64(rec.Usage.InputTokens),
		CacheCreationTokens: int64(rec.Usage.CacheCreationTokens),
		CacheReadTokens:     int64(rec.Usage.CacheReadTokens),
		OutputTokens:        int64(rec.Usage.OutputTokens),
		CostUSD:             rec.CostUSD,
		LatencyMS:           rec.LatencyMS,
	}
	if err := s.usage.Insert(dbctx.Context{Ctx: ctx}, row); err != nil {
		s.log.Warn("token usage insert failed", "error", err.Error())
	}
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "scriptwell-backend",
		Environment: cfg.AppEnv,
	})
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			log.Warn("otel shutdown", "error", err.Error())
		}
	}()

	// Postgres
	postgresService, err := db.NewPostgresService(log, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres init failed", "error", err.Error())
	}
	if err := postgresService.AutoMigrate(); err != nil {
		log.Fatal("postgres migration failed", "error", err.Error())
	}
	gdb := postgresService.DB()

	// Redis: queue + realtime bus
	rdb, err := redisdb.NewClient(log, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis init failed", "error", err.Error())
	}
	defer rdb.Close()
	jobQueue := queue.NewRedisQueue(rdb, log)
	bus := realtime.NewBus(rdb, log)

	// Repos and platform clients
	all := repos.NewAll(gdb, log)
	llm, err := anthropic.NewClient(log, &usageSink{usage: all.TokenUsage, log: log})
	if err != nil {
		log.Fatal("anthropic client init failed", "error", err.Error())
	}
	embedder, err := openai.NewClient(log)
	if err != nil {
		log.Fatal("openai client init failed", "error", err.Error())
	}

	// Modules
	analysisUC := analysis.New(analysis.Deps{
		Deps: analysissteps.Deps{
			DB:         gdb,
			Log:        log,
			Cfg:        cfg,
			LLM:        llm,
			Embedder:   embedder,
			Scripts:    all.Scripts,
			Scenes:     all.Scenes,
			Summaries:  all.SceneSummaries,
			Outlines:   all.Outlines,
			Sheets:     all.CharacterSheets,
			Embeddings: all.SceneEmbeddings,
			Metrics:    all.OperationMetrics,
		},
		Queue:   jobQueue,
		JobRuns: all.JobRuns,
	})
	chatUC := chat.New(chat.Deps{
		Deps: chatsteps.Deps{
			DB:             gdb,
			Log:            log,
			Cfg:            cfg,
			LLM:            llm,
			Embedder:       embedder,
			Scripts:        all.Scripts,
			Scenes:         all.Scenes,
			SceneSummaries: all.SceneSummaries,
			Outlines:       all.Outlines,
			Sheets:         all.CharacterSheets,
			Embeddings:     all.SceneEmbeddings,
			Threads:        all.PlotThreads,
			Relationships:  all.SceneRelationships,
			Messages:       all.ChatMessages,
			States:         all.ConversationStates,
			ConvSummaries:  all.ConversationSummaries,
			Metrics:        all.OperationMetrics,
		},
	})
	scriptUC := script.New(script.Deps{
		Deps: scriptsteps.Deps{
			DB:            gdb,
			Log:           log,
			Cfg:           cfg,
			Scripts:       all.Scripts,
			Scenes:        all.Scenes,
			WriteOps:      all.WriteOps,
			Versions:      all.ScriptVersions,
			ScriptUpdates: all.ScriptUpdates,
			SceneUpdates:  all.SceneUpdates,
			Snapshots:     all.SnapshotMetadata,
			Analysis:      analysisUC,
		},
	})

	// Background worker
	jobWorker := worker.New(jobQueue, all.JobRuns, log, cfg)
	jobhandlers.Register(jobWorker, analysisUC, scriptUC)
	go jobWorker.Run(ctx)
	go runWriteOpGC(ctx, log, analysisUC)

	// HTTP
	router := server.NewRouter(server.RouterConfig{
		Log:             log,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		AuthMiddleware:  middleware.NewAuthMiddleware(log, cfg.JWTSecret),
		ChatHandler:     handlers.NewChatHandler(log, chatUC),
		ScriptHandler:   handlers.NewScriptHandler(log, scriptUC, bus),
		AnalysisHandler: handlers.NewAnalysisHandler(log, analysisUC, scriptUC, all.JobRuns),
	})
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", "error", err.Error())
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err.Error())
	}
}

// runWriteOpGC enqueues the daily idempotency-ledger sweep.
func runWriteOpGC(ctx context.Context, log *logger.Logger, an *analysis.Usecases) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := an.EnqueueWriteOpGC(ctx); err != nil {
				log.Warn("write-op gc enqueue failed", "error", err.Error())
			}
		}
	}
}
