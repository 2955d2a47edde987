// Package docqa provides the document QA server implementation.
package docqa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/handler"
	"github.com/kart-io/docqa/internal/docqa/router"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/pkg/component/milvus"
	"github.com/kart-io/docqa/pkg/llm"
	cacheopts "github.com/kart-io/docqa/pkg/options/cache"
	llmopts "github.com/kart-io/docqa/pkg/options/llm"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
	ragopts "github.com/kart-io/docqa/pkg/options/rag"
	httpopts "github.com/kart-io/docqa/pkg/options/server/http"
	"github.com/kart-io/version"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/docqa/pkg/llm/gemini"
	_ "github.com/kart-io/docqa/pkg/llm/ollama"
	_ "github.com/kart-io/docqa/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "docqa"

// Store backends.
const (
	StoreBackendMilvus = "milvus"
	StoreBackendMemory = "memory"
)

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	CacheOptions     *cacheopts.Options
	StoreBackend     string
	ShutdownTimeout  time.Duration
}

// Server represents the document QA server.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	storeClose      func()
	redisClose      func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(_ context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", version.Get().GitVersion)
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting document QA service...")

	// 2. 初始化 Store 层
	vectorStore, storeClose, err := cfg.newVectorStore()
	if err != nil {
		return nil, err
	}
	logger.Infow("Vector store initialized", "backend", cfg.StoreBackend)

	// 3. 初始化 Redis 客户端（查询缓存 + 嵌入缓存）
	redisClient, redisClose := cfg.newRedisClient()

	var queryCache *biz.QueryCache
	if redisClient != nil {
		queryCache = biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.TTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix + "query:" + cfg.RAGOptions.Collection + ":",
		})
	}

	// 4. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	// 相同文本的嵌入结果缓存到 Redis，减少重复的远程调用
	if redisClient != nil {
		embedProvider = llm.NewCachedEmbeddingProvider(embedProvider, redisClient, &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.TTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix + "embedding:",
		})
		logger.Info("Embedding cache enabled")
	}

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 5. 初始化 Biz 层
	serviceConfig := &biz.ServiceConfig{
		IndexerConfig: &biz.IndexerConfig{
			ChunkSize:     cfg.RAGOptions.ChunkSize,
			ChunkOverlap:  cfg.RAGOptions.ChunkOverlap,
			Collection:    cfg.RAGOptions.Collection,
			EmbeddingDim:  cfg.RAGOptions.EmbeddingDim,
			DataDir:       cfg.RAGOptions.DataDir,
			MaxUploadSize: cfg.RAGOptions.MaxUploadSize,
		},
		RetrieverConfig: &biz.RetrieverConfig{
			TopK:       cfg.RAGOptions.TopK,
			Collection: cfg.RAGOptions.Collection,
		},
		GeneratorConfig: &biz.GeneratorConfig{
			SystemPrompt: cfg.RAGOptions.SystemPrompt,
		},
		QueryCacheConfig: &biz.QueryCacheConfig{
			Enabled:   queryCache != nil,
			TTL:       cfg.CacheOptions.TTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix,
		},
	}
	qaService := biz.NewDocQAService(vectorStore, embedProvider, chatProvider, queryCache, serviceConfig)
	logger.Infow("Document QA service initialized",
		"collection", cfg.RAGOptions.Collection,
		"top_k", cfg.RAGOptions.TopK,
		"cache.enabled", queryCache != nil,
	)

	// 6. 初始化 Handler 层并注册路由
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	router.Register(engine, handler.NewDocQAHandler(qaService), cfg.HTTPOptions.AuthToken)

	httpServer := &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Info("Document QA service is ready")
	return &Server{
		httpServer:      httpServer,
		shutdownTimeout: cfg.ShutdownTimeout,
		storeClose:      storeClose,
		redisClose:      redisClose,
	}, nil
}

// newVectorStore builds the configured vector store backend.
func (cfg *Config) newVectorStore() (store.VectorStore, func(), error) {
	switch cfg.StoreBackend {
	case StoreBackendMemory:
		memStore := store.NewMemoryStore()
		return memStore, func() {}, nil
	case StoreBackendMilvus, "":
		milvusClient, err := milvus.New(cfg.MilvusOptions)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		logger.Info("Milvus client initialized")
		return store.NewMilvusStore(milvusClient), func() {
			_ = milvusClient.Close(context.Background())
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q (supported: milvus, memory)", cfg.StoreBackend)
	}
}

// newRedisClient connects to Redis when caching is enabled.
// Connection failures disable caching instead of failing startup.
func (cfg *Config) newRedisClient() (*goredis.Client, func()) {
	if !cfg.CacheOptions.Enabled {
		logger.Info("Cache is disabled")
		return nil, nil
	}

	redisOpts := cfg.CacheOptions.Redis
	if redisOpts == nil {
		logger.Warn("Cache is enabled but no Redis configuration provided")
		return nil, nil
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         redisOpts.Addr(),
		Password:     redisOpts.Password,
		DB:           redisOpts.Database,
		MaxRetries:   redisOpts.MaxRetries,
		PoolSize:     redisOpts.PoolSize,
		MinIdleConns: redisOpts.MinIdleConns,
		DialTimeout:  redisOpts.DialTimeout,
		ReadTimeout:  redisOpts.ReadTimeout,
		WriteTimeout: redisOpts.WriteTimeout,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		_ = redisClient.Close()
		return nil, nil
	}

	logger.Infow("Redis cache initialized",
		"addr", redisOpts.Addr(),
		"ttl", cfg.CacheOptions.TTL,
	)
	return redisClient, func() { _ = redisClient.Close() }
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if s.storeClose != nil {
			s.storeClose()
		}
		if s.redisClose != nil {
			s.redisClose()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Listen: %s\n", cfg.HTTPOptions.Addr)
}
