package main

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Guiss-Guiss/ScriptumAI/internal/ai"
	"github.com/Guiss-Guiss/ScriptumAI/internal/chunker"
	"github.com/Guiss-Guiss/ScriptumAI/internal/config"
	"github.com/Guiss-Guiss/ScriptumAI/internal/db"
	"github.com/Guiss-Guiss/ScriptumAI/internal/decoder"
	"github.com/Guiss-Guiss/ScriptumAI/internal/embedcache"
	"github.com/Guiss-Guiss/ScriptumAI/internal/filestore"
	"github.com/Guiss-Guiss/ScriptumAI/internal/langdetect"
	"github.com/Guiss-Guiss/ScriptumAI/internal/service"
	"github.com/Guiss-Guiss/ScriptumAI/internal/tasktracker"
	"github.com/Guiss-Guiss/ScriptumAI/internal/vectorstore"
)

type app struct {
	cfg       *config.Config
	store     vectorstore.Store
	embedDB   *embedcache.PgStore
	files     filestore.Store
	tracker   *tasktracker.Tracker
	decoders  *decoder.Registry
	ingest    *service.IngestService
	retrieval *service.RetrievalService
	query     *service.QueryService
	system    *service.SystemService
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	ch, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.Connect(ctx, cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	files, err := filestore.New(cfg.FileStore)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init file store: %w", err)
	}
	generator, embedder, err := ai.Build(cfg.AI)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	var embedDB *embedcache.PgStore
	if cfg.Cache.Persistent != nil {
		conn, err := db.Open(*cfg.Cache.Persistent)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("open embedding cache db: %w", err)
		}
		if err := db.ApplyMigrations(conn); err != nil {
			_ = conn.Close()
			_ = store.Close()
			return nil, fmt.Errorf("embedding cache migrations: %w", err)
		}
		embedDB = embedcache.NewPgStore(conn)
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, embedDB)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.Cache.EmbeddingSize, time.Duration(cfg.Cache.EmbeddingTTL)*time.Second)
	manager := ai.NewManager(generator, embedder, ai.ManagerConfig{
		EmbedTimeout:    time.Duration(cfg.AI.EmbedTimeout) * time.Second,
		GenerateTimeout: time.Duration(cfg.AI.GenerateTimeout) * time.Second,
	})

	router := langdetect.NewRouter(cfg.SupportedLanguages)
	registry := vectorstore.NewRegistry(store, cfg.VectorStore.CollectionBase, cfg.SupportedLanguages, cfg.AI.Dimension)
	decoders := decoder.Default()
	tracker := tasktracker.New()
	activity := service.NewActivity(0)
	queryCache := service.NewQueryCache(cfg.Cache.QuerySize, time.Duration(cfg.Cache.QueryTTL)*time.Second)

	retrieval := service.NewRetrievalService(router, manager, registry, queryCache, activity, cfg.Retrieval.TopK)
	ingest := service.NewIngestService(service.IngestDeps{
		Decoders: decoders,
		Chunker:  ch,
		Router:   router,
		Embedder: manager,
		Registry: registry,
		Tracker:  tracker,
		Files:    files,
		Activity: activity,
		OnWrite:  retrieval.Invalidate,
	}, service.IngestConfig{
		BatchSize:        cfg.Ingest.BatchSize,
		Dimension:        cfg.AI.Dimension,
		Replace:          cfg.Replace(),
		Workers:          cfg.Ingest.Workers,
		DirectoryWorkers: cfg.Ingest.DirectoryWorkers,
	})
	query := service.NewQueryService(retrieval, manager, cfg.Retrieval.TopK, cfg.Retrieval.QueryTopK, cfg.Retrieval.Threshold)
	system := service.NewSystemService(registry, tracker, activity, service.SystemInfo{
		EmbeddingModel:     manager.EmbeddingModelName(),
		LLMModel:           firstModel(cfg.AI.Generators),
		SupportedFileTypes: decoders.SupportedTypes(),
	})
	return &app{
		cfg:       cfg,
		store:     store,
		embedDB:   embedDB,
		files:     files,
		tracker:   tracker,
		decoders:  decoders,
		ingest:    ingest,
		retrieval: retrieval,
		query:     query,
		system:    system,
	}, nil
}

func firstModel(refs []config.AIModelConfig) string {
	names := ai.ModelNames(refs)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Close waits for in-flight ingestion before releasing the store.
func (a *app) Close(ctx context.Context) error {
	if err := a.ingest.Shutdown(ctx); err != nil {
		logutil.GetLogger(ctx).Warn("ingestion did not drain", zap.Error(err))
	}
	if a.embedDB != nil {
		if err := a.embedDB.Close(); err != nil {
			logutil.GetLogger(ctx).Warn("close embedding cache db failed", zap.Error(err))
		}
	}
	return a.store.Close()
}
