// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/markdave123-py/chatspace/internal/config"
	"github.com/markdave123-py/chatspace/internal/core"
	"github.com/markdave123-py/chatspace/internal/core/connector"
	db "github.com/markdave123-py/chatspace/internal/core/database"
	"github.com/markdave123-py/chatspace/internal/core/ingestion_engine"
	"github.com/markdave123-py/chatspace/internal/core/llm"
	"github.com/markdave123-py/chatspace/internal/core/memstore"
	objectclient "github.com/markdave123-py/chatspace/internal/core/object-client"
	"github.com/markdave123-py/chatspace/internal/core/scraper"
	"github.com/markdave123-py/chatspace/internal/core/vectorsearch"
	"github.com/markdave123-py/chatspace/internal/services"
)

type App struct {
	Logger   *zap.Logger
	DBClient core.DbClient
	Ingestor *ingestion_engine.Ingestor
	Server   *Server

	closers []io.Closer
}

// NewLogger builds the production zap logger at the configured level.
func NewLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// NewApp wires storage, model providers, ingestion and the HTTP server.
// Background ingestion workers live for as long as ctx.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Logger: logger}

	setupCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := newDbClient(setupCtx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient)

	objClient, err := newObjectClient(setupCtx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	embedder, llmProvider, err := a.newModelProviders(setupCtx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	webScraper := scraper.New(fetcher, logger)
	a.closers = append(a.closers, webScraper)

	useReadability := false
	documentExtractor := ingestion_engine.NewDocconvExtractor(useReadability)

	pipeline := ingestion_engine.NewPipeline(
		dbClient,
		objClient,
		webScraper,
		embedder,
		documentExtractor,
		ingestion_engine.NewIngestConfig(cfg),
		logger,
	)
	a.Ingestor = ingestion_engine.NewIngestor(pipeline, 64, logger)
	a.Ingestor.Start(ctx, cfg.IngestWorkers)

	searcher := vectorsearch.NewSearcher(dbClient, embedder)
	kbConnector := connector.NewClient(cfg.ConnectorTimeout)

	svcs := serverServices{
		users:      services.NewUserService(dbClient, cfg.JWTSecret),
		chatSpaces: services.NewChatSpaceService(dbClient, objClient, cfg.BucketName, a.Ingestor, cfg.MaxChatSpacesPerUser, logger),
		documents:  services.NewDocumentService(dbClient, objClient, documentExtractor, services.NewDocumentConfig(cfg), logger),
		chat:       services.NewChatService(dbClient, searcher, kbConnector, llmProvider, services.NewChatConfig(cfg), logger),
		settings:   services.NewSettingsService(dbClient),
	}
	a.Server = NewServer(cfg, svcs, logger)

	logger.Info("application initialized",
		zap.String("storage", cfg.StorageMode),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.Int("ingest_workers", cfg.IngestWorkers),
	)
	return a, nil
}

func newDbClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (core.DbClient, error) {
	if cfg.StorageMode == "memory" {
		logger.Warn("using in-memory storage; data is lost on restart")
		return memstore.New(), nil
	}
	dbClient, err := db.NewDatabaseClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("database initialized and ready")
	return dbClient, nil
}

func newObjectClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (core.ObjectClient, error) {
	if cfg.AwsAccessKey == "" || cfg.AwsSecretKey == "" {
		logger.Warn("AWS credentials not set; uploads are kept in memory")
		return objectclient.NewMemoryClient(), nil
	}
	objClient, err := objectclient.NewS3Client(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("object client initialized and ready", zap.String("bucket", cfg.BucketName))
	return objClient, nil
}

func (a *App) newModelProviders(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, core.LLMProvider, error) {
	if cfg.LLMProvider == "gemini" {
		embedder, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
		}
		a.closers = append(a.closers, embedder)

		generator, err := llm.NewGeminiLLM(ctx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't initialize the llm, %w", err)
		}
		a.closers = append(a.closers, generator)
		return embedder, generator, nil
	}

	client, err := llm.NewOpenRouterClient(llm.OpenRouterConfig{
		BaseURL:    cfg.OpenRouterBaseURL,
		APIKey:     cfg.OpenRouterAPIKey,
		EmbedModel: cfg.EmbedModel,
		ChatModel:  cfg.GenModel,
		SiteURL:    cfg.SiteURL,
		SiteName:   cfg.SiteName,
		Timeout:    cfg.CompletionTimeout,
	}, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't initialize openrouter, %w", err)
	}
	return client, client, nil
}

func newFetcher(cfg *config.Config, logger *zap.Logger) (scraper.Fetcher, error) {
	if cfg.UseHTTPFetcher {
		return scraper.NewHTTPFetcher(cfg.ScrapeTimeout), nil
	}
	fetcher, err := scraper.NewRodFetcher(scraper.RodConfig{
		ControlURL:  cfg.BrowserControlURL,
		Headless:    cfg.BrowserHeadless,
		NavTimeout:  cfg.ScrapeTimeout,
		SettleDelay: cfg.ScrapeSettleDelay,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("couldn't start the browser, %w", err)
	}
	return fetcher, nil
}

// Close stops background work and releases clients in reverse order of
// creation. Call it after the context passed to NewApp is done.
func (a *App) Close() {
	if a.Ingestor != nil {
		a.Ingestor.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
}
