package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cosyhq/regcheck/internal/config"
	"github.com/cosyhq/regcheck/internal/core/ports"
	"github.com/cosyhq/regcheck/internal/core/usecase"
	"github.com/cosyhq/regcheck/internal/infrastructure/cache/redis"
	"github.com/cosyhq/regcheck/internal/infrastructure/lexical"
	"github.com/cosyhq/regcheck/internal/infrastructure/llm/openai"
	"github.com/cosyhq/regcheck/internal/infrastructure/queue/nats"
	"github.com/cosyhq/regcheck/internal/infrastructure/repository/postgres"
	"github.com/cosyhq/regcheck/internal/infrastructure/resilience"
	"github.com/cosyhq/regcheck/internal/infrastructure/vector/qdrant"
	"github.com/cosyhq/regcheck/internal/observability/logging"
	"github.com/cosyhq/regcheck/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	Queue    ports.MessageQueue
	LogStore ports.CheckLogStore
	Checker  ports.ComplianceChecker

	closeFn func()
}

// New wires the full check pipeline for the API process.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	httpMetrics := metrics.NewHTTPServerMetrics(service)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	logStore := postgres.NewCheckLogRepository(db)
	if err := logStore.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	llmClient, err := openai.NewClient(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		EmbeddingModel: cfg.EmbeddingModel,
	}, executor)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	llmClient.WithMetrics(service, httpMetrics)

	store := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, llmClient)
	lexicalSource := lexical.NewBuilder(store, logger)
	retrieval := usecase.NewRetrievalService(store, lexicalSource, cfg.BM25Weight, cfg.VectorWeight)

	aliasCache := redis.NewAliasCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB).
		WithMetrics(service, httpMetrics)
	expander := usecase.NewQueryExpander(aliasCache, llmClient, cfg.NormalizerModel, logger).
		WithLimits(time.Duration(cfg.AliasTTLDays)*24*time.Hour, cfg.AliasLLMBudget)

	resolver := usecase.NewIngredientResolver(retrieval, expander, logger)
	generator := usecase.NewReflectiveGenerator(llmClient, cfg.GenerationModel, cfg.ReflectionModel, logger).
		WithThreshold(cfg.ReflectionMinimum).
		WithMetrics(service, httpMetrics)

	checker := usecase.NewComplianceUseCase(retrieval, expander, resolver, generator, queue, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: httpMetrics,

		Queue:    queue,
		LogStore: logStore,
		Checker:  checker,

		closeFn: func() {
			queue.Close()
			_ = aliasCache.Close()
			_ = db.Close()
		},
	}, nil
}

// NewWorker wires only what the audit-log consumer needs: the queue and the
// check-log repository. No model or retrieval stack.
func NewWorker(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	logStore := postgres.NewCheckLogRepository(db)
	if err := logStore.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		LogStore: logStore,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
