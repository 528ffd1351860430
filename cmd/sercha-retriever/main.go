package main

// @title           Sercha Retriever API
// @version         1.0
// @description     Orchestration API over a late-interaction retrieval engine. Builds, activates and queries named passage collections.

// @contact.name   Sercha OSS
// @contact.url    https://github.com/custodia-labs/sercha-retriever/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8893
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/custodia-labs/sercha-retriever/docs"
	"github.com/custodia-labs/sercha-retriever/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-retriever/internal/adapters/driven/bleve"
	"github.com/custodia-labs/sercha-retriever/internal/adapters/driven/colbert"
	"github.com/custodia-labs/sercha-retriever/internal/adapters/driven/filelock"
	"github.com/custodia-labs/sercha-retriever/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-retriever/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/sercha-retriever/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-retriever/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-retriever/internal/config"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-retriever/internal/core/services"
	"github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// "token" prints a bearer token; any other invocation serves the API
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(cfg, os.Args[2:], os.Stdout); err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		return
	}

	log.Printf("sercha-retriever %s starting (engine=%s, store=%s, lock=%s)",
		version, cfg.Engine.Backend, cfg.Store.Backend, cfg.Lock.Backend)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backends := map[string]http.Pinger{}

	// ===== PostgreSQL (store or advisory lock) =====
	var db *postgres.DB
	if cfg.Store.Backend == "postgres" || cfg.Lock.Backend == "postgres" {
		log.Println("Connecting to PostgreSQL...")
		dbConfig := postgres.DefaultConfig(cfg.Store.DatabaseURL)
		dbConfig.Migrate = cfg.Store.Migrate
		db, err = postgres.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		backends["postgres"] = db
		log.Println("PostgreSQL connected")
	}

	// ===== Collection store =====
	var store driven.CollectionStore
	switch cfg.Store.Backend {
	case "postgres":
		store = postgres.NewCollectionStore(db)
		log.Println("Using PostgreSQL collection store")
	default:
		store = memory.NewCollectionStore()
		log.Println("Using in-memory collection store; records are lost on restart")
	}

	// ===== Accelerator lock (optional, cross-process) =====
	var distributedLock driven.DistributedLock
	switch cfg.Lock.Backend {
	case "redis":
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(cfg.Lock.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		lock := redisadapter.NewLock(redisClient, redisadapter.WithKeyPrefix(cfg.Lock.KeyPrefix))
		distributedLock = lock
		backends["redis"] = lock
		log.Println("Using Redis accelerator lock")
	case "postgres":
		lock := postgres.NewAdvisoryLock(db)
		distributedLock = lock
		log.Println("Using PostgreSQL advisory lock")
	case "file":
		lock := filelock.New(cfg.Lock.Dir)
		distributedLock = lock
		backends["filelock"] = lock
		log.Printf("Using file lock in %s", cfg.Lock.Dir)
	default:
		log.Println("No cross-process lock; accelerator is guarded in-process only")
	}

	// ===== Retrieval engine =====
	var engine driven.RetrievalEngine
	switch cfg.Engine.Backend {
	case "colbert":
		engine = colbert.NewEngine(colbert.Config{
			BaseURL:    cfg.Engine.ColBERT.URL,
			Checkpoint: cfg.Paths.CheckpointDir,
			DocMaxLen:  cfg.Engine.ColBERT.DocMaxLen,
			NBits:      cfg.Engine.ColBERT.NBits,
			Timeout:    cfg.Engine.ColBERT.Timeout,
		})
		log.Printf("Using ColBERT sidecar at %s", cfg.Engine.ColBERT.URL)
	default:
		engine = bleve.NewEngine(bleve.Config{
			BatchSize: cfg.Engine.Bleve.BatchSize,
			Analyzer:  cfg.Engine.Bleve.Analyzer,
		}, logger)
		log.Println("Using in-process Bleve engine")
	}

	// ===== Auth (optional) =====
	var tokens *auth.Adapter
	if cfg.AuthEnabled() {
		tokens = auth.NewAdapter(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		log.Println("Bearer auth enabled on lifecycle endpoints")
	}

	// ===== Services =====
	layout := services.Layout{
		DocumentsDir:   cfg.Paths.DocumentsDir,
		ExperimentsDir: cfg.Paths.ExperimentsDir,
		IndexName:      cfg.Paths.IndexName,
	}
	coordinator := services.NewCoordinator(store, logger)
	collectionService := services.NewCollectionService(store, layout, logger)

	guard := services.NewAcceleratorGuard(services.AcceleratorGuardConfig{
		Policy:      services.LockPolicy(cfg.Build.LockPolicy),
		WaitTimeout: cfg.Build.LockWait,
		Lock:        distributedLock,
		LockTTL:     cfg.Lock.TTL,
		Logger:      logger,
	})

	indexService := services.NewIndexService(services.IndexServiceConfig{
		Collections: collectionService,
		Coordinator: coordinator,
		Engine:      engine,
		Guard:       guard,
		Layout:      layout,
		Logger:      logger,
	})

	registry := services.NewSearcherRegistry(services.SearcherRegistryConfig{
		Store:       store,
		Collections: collectionService,
		Coordinator: coordinator,
		Engine:      engine,
		Guard:       guard,
		Discover:    true,
		Logger:      logger,
	})
	defer func() {
		if err := registry.Close(); err != nil {
			log.Printf("Failed to close searchers: %v", err)
		}
		log.Println("Searchers closed")
	}()

	searchService := services.NewSearchService(services.SearchServiceConfig{
		Registry:  registry,
		MaxK:      cfg.Search.MaxK,
		CacheSize: cfg.Search.CacheSize,
		Logger:    logger,
	})

	svc := http.Services{
		Collections: collectionService,
		Indexer:     indexService,
		Registry:    registry,
		Search:      searchService,
		Engine:      engine,
		Backends:    backends,
		Logger:      logger,
	}
	if tokens != nil {
		svc.Tokens = tokens
	}

	server := http.NewServer(http.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Version:         version,
		DefaultK:        cfg.Search.DefaultK,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}, svc)

	log.Printf("API server starting on %s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := server.Start(); err != nil {
		log.Printf("Server error: %v", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
