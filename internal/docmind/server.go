// Package docmind provides the DocMind server implementation.
package docmind

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docmind/internal/docmind/biz"
	"github.com/kart-io/docmind/internal/docmind/extract"
	"github.com/kart-io/docmind/internal/docmind/handler"
	"github.com/kart-io/docmind/internal/docmind/router"
	"github.com/kart-io/docmind/internal/docmind/store"
	"github.com/kart-io/docmind/pkg/app"
	"github.com/kart-io/docmind/pkg/component/milvus"
	"github.com/kart-io/docmind/pkg/llm"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/docmind/pkg/llm/ollama"
	_ "github.com/kart-io/docmind/pkg/llm/openai"

	cacheopts "github.com/kart-io/docmind/pkg/options/cache"
	llmopts "github.com/kart-io/docmind/pkg/options/llm"
	logopts "github.com/kart-io/docmind/pkg/options/logger"
	milvusopts "github.com/kart-io/docmind/pkg/options/milvus"
	ragopts "github.com/kart-io/docmind/pkg/options/rag"
	httpopts "github.com/kart-io/docmind/pkg/options/server/http"
)

// Name is the name of the application.
const Name = "docmind"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	CacheOptions     *cacheopts.Options
}

// Server represents the DocMind server.
type Server struct {
	httpSrv *http.Server
	// closers 按关闭顺序排列：先存储，后缓存。
	closers         []func(context.Context)
	shutdownTimeout time.Duration
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting DocMind service...")

	var closers []func(context.Context)

	// 2. 初始化向量存储
	vectorStore, err := newVectorStore(cfg)
	if err != nil {
		return nil, err
	}
	closers = append(closers, func(ctx context.Context) { _ = vectorStore.Close(ctx) })
	logger.Infow("Vector store initialized", "driver", cfg.RAGOptions.StoreDriver)

	// 3. 初始化 Redis 查询缓存。连接失败时降级为无缓存，不阻止启动。
	queryCache, redisClose := newQueryCache(ctx, cfg)
	if redisClose != nil {
		closers = append(closers, redisClose)
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
		ChunkerConfig: &biz.ChunkerConfig{
			ChunkSize:    cfg.RAGOptions.ChunkSize,
			ChunkOverlap: cfg.RAGOptions.ChunkOverlap,
			MaxChunkSize: cfg.RAGOptions.MaxChunkSize,
		},
		IndexerConfig: &biz.IndexerConfig{
			Collection:   cfg.RAGOptions.Collection,
			EmbeddingDim: cfg.RAGOptions.EmbeddingDim,
		},
		RetrieverConfig: &biz.RetrieverConfig{
			TopK:                cfg.RAGOptions.TopK,
			SimilarityThreshold: cfg.RAGOptions.SimilarityThreshold,
			Collection:          cfg.RAGOptions.Collection,
		},
		GeneratorConfig: generatorConfig(cfg),
		RerankStrategy:  biz.RerankStrategy(cfg.RAGOptions.RerankStrategy),
	}

	ragService, err := biz.NewRAGService(
		extract.NewRegistry(),
		vectorStore,
		embedProvider,
		chatProvider,
		queryCache,
		serviceConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize service: %w", err)
	}

	if err := ragService.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	logger.Infow("DocMind service ready",
		"collection", cfg.RAGOptions.Collection,
		"rerank.strategy", cfg.RAGOptions.RerankStrategy,
		"cache.enabled", queryCache != nil,
	)

	// 6. 初始化 HTTP 层
	engine := router.New(handler.NewHandler(ragService))
	httpSrv := &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	return &Server{
		httpSrv:         httpSrv,
		closers:         closers,
		shutdownTimeout: cfg.HTTPOptions.ShutdownTimeout,
	}, nil
}

// newVectorStore 按配置的驱动创建向量存储。
func newVectorStore(cfg *Config) (store.VectorStore, error) {
	switch cfg.RAGOptions.StoreDriver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "milvus":
		client, err := milvus.New(cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		return store.NewMilvusStore(client), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.RAGOptions.StoreDriver)
	}
}

// newQueryCache 创建 Redis 查询缓存。缓存未启用、未配置或连接失败时
// 返回 nil 缓存，服务正常运行。
func newQueryCache(ctx context.Context, cfg *Config) (*biz.QueryCache, func(context.Context)) {
	if cfg.CacheOptions == nil || !cfg.CacheOptions.Enabled {
		logger.Info("Cache is disabled")
		return nil, nil
	}

	redisOpts := cfg.CacheOptions.Redis
	if redisOpts == nil {
		logger.Warn("Cache is enabled but no Redis configuration provided in CacheOptions")
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
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		_ = redisClient.Close()
		return nil, nil
	}

	queryCache := biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
		Enabled:   true,
		TTL:       cfg.CacheOptions.TTL,
		KeyPrefix: cfg.CacheOptions.KeyPrefix,
	})
	logger.Infow("Redis cache initialized",
		"host", redisOpts.Host,
		"port", redisOpts.Port,
		"ttl", cfg.CacheOptions.TTL,
	)
	return queryCache, func(context.Context) { _ = redisClient.Close() }
}

// generatorConfig 构造生成器配置，空的系统提示词使用内置默认。
func generatorConfig(cfg *Config) *biz.GeneratorConfig {
	genCfg := biz.DefaultGeneratorConfig()
	if cfg.RAGOptions.SystemPrompt != "" {
		genCfg.SystemPrompt = cfg.RAGOptions.SystemPrompt
	}
	return genCfg
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully: HTTP server first, then the store and cache.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down DocMind service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.httpSrv.Shutdown(shutdownCtx)
	s.close()
	if err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("DocMind service stopped")
	return nil
}

// close 依序关闭存储与缓存连接。
func (s *Server) close() {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	for _, fn := range s.closers {
		fn(ctx)
	}
}

// printBanner prints startup information before the logger is ready.
func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Store: %s (collection %s)\n", cfg.RAGOptions.StoreDriver, cfg.RAGOptions.Collection)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Listen: %s\n", cfg.HTTPOptions.Addr)
}

// gin 以 release 模式运行，避免默认 debug 输出污染结构化日志。
func init() {
	gin.SetMode(gin.ReleaseMode)
}
