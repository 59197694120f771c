package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/chat"
	"github.com/emsight-ai/emsight-engine/pkg/config"
	"github.com/emsight-ai/emsight-engine/pkg/generator"
	"github.com/emsight-ai/emsight-engine/pkg/golden"
	"github.com/emsight-ai/emsight-engine/pkg/handlers"
	"github.com/emsight-ai/emsight-engine/pkg/llm"
	"github.com/emsight-ai/emsight-engine/pkg/logging"
	"github.com/emsight-ai/emsight-engine/pkg/middleware"
	"github.com/emsight-ai/emsight-engine/pkg/retry"
	"github.com/emsight-ai/emsight-engine/pkg/schema"
	"github.com/emsight-ai/emsight-engine/pkg/semantics"
	"github.com/emsight-ai/emsight-engine/pkg/sql"
	"github.com/emsight-ai/emsight-engine/pkg/warehouse"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Optional .env for local development; env vars win either way.
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("refiner_model", cfg.Refiner.Model),
		zap.String("generator_model", cfg.Generator.Model),
		zap.String("warehouse", logging.SanitizeConnectionString(cfg.Warehouse.ConnectionString())))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refinerClient, err := llm.NewClient(&llm.Config{
		Provider:    cfg.Refiner.Provider,
		Endpoint:    cfg.Refiner.Endpoint,
		Model:       cfg.Refiner.Model,
		APIKey:      cfg.Refiner.APIKey,
		Temperature: cfg.Refiner.Temperature,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create refiner client", zap.Error(err))
	}

	generatorClient, err := llm.NewClient(&llm.Config{
		Provider:    cfg.Generator.Provider,
		Endpoint:    cfg.Generator.Endpoint,
		Model:       cfg.Generator.Model,
		APIKey:      cfg.Generator.APIKey,
		Temperature: cfg.Generator.Temperature,
		MaxTokens:   cfg.Generator.MaxTokens,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create generator client", zap.Error(err))
	}

	var encoder llm.Client
	if cfg.Embedding.IsAvailable() {
		encoder, err = llm.NewClient(&llm.Config{
			Endpoint:       cfg.Embedding.Endpoint,
			Model:          cfg.Embedding.Model,
			APIKey:         cfg.Embedding.APIKey,
			EmbeddingModel: cfg.Embedding.Model,
		}, logger)
		if err != nil {
			logger.Fatal("failed to create embedding client", zap.Error(err))
		}
	} else {
		logger.Warn("no embedding endpoint configured, golden retrieval degrades to keyword overlap")
	}

	metadata, err := schema.Load(cfg.Documents.SchemaPath, logger)
	if err != nil {
		logger.Fatal("failed to load schema metadata", zap.Error(err))
	}

	var triggers semantics.TriggerConfig
	if cfg.Documents.TriggersPath != "" {
		triggers, err = semantics.LoadTriggerConfig(cfg.Documents.TriggersPath)
		if err != nil {
			logger.Fatal("failed to load compressor triggers", zap.Error(err))
		}
	}

	rulesCompressor, err := semantics.NewSectionCompressorFromFile(cfg.Documents.RulesPath, triggers, logger)
	if err != nil {
		logger.Fatal("failed to load rules document", zap.Error(err))
	}
	glossaryCompressor, err := semantics.NewGlossaryCompressorFromFile(cfg.Documents.GlossaryPath, logger)
	if err != nil {
		logger.Fatal("failed to load glossary document", zap.Error(err))
	}

	store, err := golden.NewStore(ctx, cfg.Documents.GoldenPath, encoder, logger)
	if err != nil {
		logger.Fatal("failed to load golden examples", zap.Error(err))
	}

	validator := sql.NewValidator(metadata.TableSchemaMap())

	genController := generator.NewController(
		generatorClient, store, validator, rulesCompressor, metadata, logger,
		generator.WithMaxRetries(cfg.Generation.MaxRetries),
		generator.WithRowLimit(cfg.Generation.RowLimit),
	)

	sessions := chat.NewSessionStore(cfg.Session.TTL(), logger)
	defer sessions.Stop()
	refiner := chat.NewRefiner(refinerClient, glossaryCompressor,
		time.Duration(cfg.Refiner.TimeoutSeconds)*time.Second, logger)
	chatController := chat.NewController(sessions, refiner, logger)

	// The warehouse is optional at startup: generation works without it,
	// execution returns 503 until it is configured.
	var executor warehouse.Executor
	if cfg.Warehouse.Password != "" {
		pgExecutor, err := warehouse.NewPostgresExecutor(ctx, &warehouse.Config{
			URL:            cfg.Warehouse.ConnectionString(),
			MaxConnections: cfg.Warehouse.MaxConnections,
			QueryTimeout:   time.Duration(cfg.Warehouse.QueryTimeoutSeconds) * time.Second,
		}, logger)
		if err != nil {
			logger.Warn("warehouse unavailable, execution endpoint disabled",
				zap.String("error", logging.SanitizeError(err)))
		} else {
			executor = pgExecutor
			defer pgExecutor.Close()
		}
	} else {
		logger.Warn("no warehouse credentials configured, execution endpoint disabled")
	}

	var ready atomic.Bool
	go warmUpGenerator(ctx, generatorClient, &ready, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, &ready, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(chatController, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(genController, executor, chatController, cfg.Documents.ErrorLogDir, logger).RegisterRoutes(mux)
	handlers.NewGoldenHandler(store, logger).RegisterRoutes(mux)
	handlers.NewFeedbackHandler(cfg.Documents.FeedbackDir, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting emsight-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

// warmUpGenerator sends one tiny completion so the first user question does
// not pay the model's cold-start cost. Readiness flips regardless of the
// outcome once the endpoint has answered or the retry budget is spent.
func warmUpGenerator(ctx context.Context, client llm.Client, ready *atomic.Bool, logger *zap.Logger) {
	defer ready.Store(true)

	err := retry.Do(ctx, &retry.Config{
		MaxRetries:   3,
		InitialDelay: 5 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}, func() error {
		wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		_, err := client.Complete(wctx, "Reply with the single word: ready")
		return err
	})
	if err != nil {
		logger.Warn("warmup exhausted, serving anyway", zap.Error(err))
		return
	}
	logger.Info("generation model warmed up")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
