package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	genkitai "github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/coach0/coach/db"
	"github.com/coach0/coach/internal/ai"
	"github.com/coach0/coach/internal/config"
	"github.com/coach0/coach/internal/content"
	"github.com/coach0/coach/internal/digest"
	"github.com/coach0/coach/internal/ingest"
	"github.com/coach0/coach/internal/insight"
	"github.com/coach0/coach/internal/mcp"
	"github.com/coach0/coach/internal/progress"
)

// ServerName identifies the MCP server to clients.
const ServerName = "coach"

// Setup creates and initializes the application. On failure it releases
// everything already initialized before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	gateway, err := ai.NewGateway(embedder, cfg.Digest.EmbedTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedding gateway: %w", err)
	}
	a.Embedder = gateway

	// Query embeddings for interactive search get their own, tighter budget.
	queryGateway, err := ai.NewGateway(embedder, cfg.Digest.QueryTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("creating query embedding gateway: %w", err)
	}

	generateModel, err := ai.NewModelGenerator(g, cfg.ModelName, cfg.Digest.GenerateTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("creating generation model: %w", err)
	}
	judgeModel, err := ai.NewModelGenerator(g, cfg.ModelName, cfg.Digest.JudgeTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("creating judge model: %w", err)
	}

	if err := provideStores(a, pool, cfg, logger); err != nil {
		return nil, err
	}

	pipeline, err := providePipeline(a.Content, gateway, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pipeline = pipeline

	orchestrator, err := provideOrchestrator(a, gateway, generateModel, judgeModel, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Orchestrator = orchestrator

	server, err := mcp.NewServer(mcp.Config{
		Name:     ServerName,
		Version:  Version,
		Digest:   orchestrator,
		Sources:  a.Content,
		Progress: a.Progress,
		Insights: a.Insights,
		Ingester: pipeline,
		Embedder: queryGateway,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	a.Server = server

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export when tracing is enabled.
// Returns a shutdown func that flushes spans; a no-op when disabled or
// the exporter cannot be created.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}

	endpoint := cfg.Tracing.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled", "endpoint", endpoint, "service", cfg.Tracing.ServiceName)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.DSN()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default) and ollama.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) genkitai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Ollama embedders are keyed by server address.
		return ollama.Embedder(g, cfg.OllamaHost)
	default: // gemini
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

func provideStores(a *App, pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) error {
	progressStore, err := progress.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating progress store: %w", err)
	}
	a.Progress = progressStore

	contentStore, err := content.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating content store: %w", err)
	}
	a.Content = contentStore

	insightStore, err := insight.NewStore(pool, insight.BlendWeights{
		Similarity:    cfg.Search.SimilarityWeight,
		Recency:       cfg.Search.RecencyWeight,
		HalfLifeHours: cfg.Search.RecencyHalfLife.Hours(),
	}, logger)
	if err != nil {
		return fmt.Errorf("creating insight store: %w", err)
	}
	a.Insights = insightStore

	return nil
}

func providePipeline(store *content.Store, embedder ai.Embedder, cfg *config.Config, logger *slog.Logger) (*ingest.Pipeline, error) {
	fetcher, err := ingest.NewFetcher(cfg.Ingest.RequestsPerSecond, cfg.Ingest.FetchTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("creating fetcher: %w", err)
	}

	chunker, err := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}

	pipeline, err := ingest.NewPipeline(store, embedder, fetcher, chunker, cfg.Ingest.MaxItemsPerSource, logger)
	if err != nil {
		return nil, fmt.Errorf("creating ingestion pipeline: %w", err)
	}
	return pipeline, nil
}

func provideOrchestrator(a *App, embedder ai.Embedder, generateModel, judgeModel ai.Generator, cfg *config.Config, logger *slog.Logger) (*digest.Orchestrator, error) {
	retriever, err := digest.NewRetriever(a.Content, embedder, cfg.Digest.SimilarityThreshold, cfg.Digest.MaxContextChunks, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	generator, err := digest.NewGenerator(generateModel, cfg.Digest.TargetInsights, logger)
	if err != nil {
		return nil, fmt.Errorf("creating insight generator: %w", err)
	}

	judge, err := digest.NewLLMJudge(judgeModel, logger)
	if err != nil {
		return nil, fmt.Errorf("creating quality judge: %w", err)
	}

	evaluator, err := digest.NewEvaluator(judge, digest.QualityWeights{
		Faithfulness: cfg.Digest.FaithfulnessWeight,
		Relevance:    cfg.Digest.RelevanceWeight,
		Precision:    cfg.Digest.PrecisionWeight,
	}, cfg.Digest.SimilarityThreshold, cfg.Digest.QualityThreshold, logger)
	if err != nil {
		return nil, fmt.Errorf("creating evaluator: %w", err)
	}

	orchestrator, err := digest.NewOrchestrator(
		a.Progress,
		retriever,
		generator,
		evaluator,
		embedder,
		a.Insights,
		cfg.Digest.RunBudget,
		cfg.Digest.EvalWorkers,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	return orchestrator, nil
}
