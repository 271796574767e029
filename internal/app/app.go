package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsRAG/internal/config"
	"NewsRAG/internal/infrastructure/deepsearch"
	"NewsRAG/internal/infrastructure/embedding"
	"NewsRAG/internal/infrastructure/llm"
	"NewsRAG/internal/infrastructure/ml"
	"NewsRAG/internal/infrastructure/scheduler"
	"NewsRAG/internal/infrastructure/storage"
	"NewsRAG/internal/infrastructure/telegram"
	"NewsRAG/internal/logging"
	"NewsRAG/internal/ports"
	"NewsRAG/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
// The store handle and the embedding pool are created once and shared by
// the pipeline and the retrieval engine.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store   *storage.Handle
	encoder *embedding.Pool

	pipeline    *usecase.Pipeline
	engine      *usecase.Engine
	collector   *usecase.Collector
	recommender *usecase.Recommender
}

// New builds the application from configuration. The store is opened lazily.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	encoder, err := newEncoder(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	pool, err := embedding.NewPool(encoder, cfg.Embedding.Workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}

	store := storage.NewHandle(cfg.Store.Path, cfg.Store.Collection)

	source := deepsearch.NewClient(cfg.NewsSource.APIKey, baseLogger.With("component", "deepsearch"),
		deepsearch.WithBaseURL(cfg.NewsSource.BaseURL),
		deepsearch.WithPageSize(cfg.NewsSource.PageSize),
		deepsearch.WithPageTimeout(cfg.NewsSource.PageTimeout()),
		deepsearch.WithRateLimit(cfg.NewsSource.RequestsPerSecond),
	)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:          source,
		Store:           store,
		Encoder:         pool,
		Logger:          baseLogger.With("component", "pipeline"),
		Themes:          cfg.Ingestion.Themes,
		BatchSize:       cfg.Ingestion.BatchSize,
		PageLimit:       cfg.NewsSource.PageLimit,
		InitialDaysBack: cfg.Ingestion.InitialDaysBack,
	})

	engine := usecase.NewEngine(usecase.EngineDeps{
		Store:             store,
		Encoder:           pool,
		Logger:            baseLogger.With("component", "retrieval"),
		NResults:          cfg.Retrieval.NResults,
		MinRelevanceScore: cfg.Retrieval.MinRelevanceScore,
		PenaltyFactor:     cfg.Retrieval.PenaltyFactor,
	})

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	collector := usecase.NewCollector(usecase.CollectorDeps{
		Pipeline:      pipeline,
		Driver:        scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), baseLogger.With("component", "scheduler")),
		Notifier:      notifier,
		Logger:        baseLogger.With("component", "collector"),
		DailyDaysBack: cfg.Ingestion.DailyDaysBack,
		RetentionDays: cfg.Ingestion.RetentionDays,
	})

	var chatClient ports.ChatClient
	if cfg.ChatGPT.APIKey != "" {
		chatClient = llm.NewChatGPTClient(cfg.ChatGPT)
	}

	return &Application{
		cfg:         cfg,
		logger:      baseLogger,
		store:       store,
		encoder:     pool,
		pipeline:    pipeline,
		engine:      engine,
		collector:   collector,
		recommender: usecase.NewRecommender(engine, chatClient, baseLogger.With("component", "recommender")),
	}, nil
}

func newEncoder(cfg config.EmbeddingConfig) (ports.Encoder, error) {
	switch cfg.Provider {
	case config.ProviderSidecar:
		return ml.NewClient(cfg.Endpoint, cfg.APIKey, cfg.Model, cfg.Dimensions, cfg.Timeout()), nil
	case config.ProviderOpenAI:
		return embedding.NewOpenAIEncoder(embedding.OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout(),
		}), nil
	case config.ProviderHash:
		return embedding.NewHashEncoder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Open initialises the document store. Failure here is fatal for every command.
func (a *Application) Open() error {
	st, err := a.store.Store()
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	count, err := st.Count(context.Background())
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	a.logger.Info("document store ready", "path", a.cfg.Store.Path, "collection", a.cfg.Store.Collection, "documents", count)
	return nil
}

// Run starts the backfill and the daily schedule, then blocks until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Open(); err != nil {
		return err
	}

	a.collector.Backfill(ctx)
	if err := a.collector.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("collector running", "cron", a.cfg.Scheduler.CronExpression, "timezone", a.cfg.Scheduler.Location().String())

	<-ctx.Done()
	a.logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.collector.Stop(stopCtx)
}

// Close releases the embedding workers and the store.
func (a *Application) Close() error {
	a.encoder.Close()
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close document store: %w", err)
	}
	return nil
}

// Pipeline exposes the ingestion use case to the CLI.
func (a *Application) Pipeline() *usecase.Pipeline { return a.pipeline }

// Engine exposes the retrieval use case to the CLI.
func (a *Application) Engine() *usecase.Engine { return a.engine }

// Recommender exposes the briefing use case to the CLI.
func (a *Application) Recommender() *usecase.Recommender { return a.recommender }

// Store exposes the shared document store.
func (a *Application) Store() ports.DocumentStore { return a.store }
