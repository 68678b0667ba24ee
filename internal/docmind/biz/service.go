package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docmind/internal/docmind/extract"
	"github.com/kart-io/docmind/internal/docmind/metrics"
	"github.com/kart-io/docmind/internal/docmind/store"
	"github.com/kart-io/docmind/pkg/llm"
)

// QueryOptions 单次问答的可选参数。
type QueryOptions struct {
	// TopK 覆盖检索配置的默认值，0 表示使用默认。
	TopK int
	// Filters 元数据等值过滤条件，原样传给向量存储。
	Filters map[string]string
	// SkipRerank 跳过重排，按相似度原始顺序构造上下文。
	SkipRerank bool
}

// Service 定义 DocMind 问答服务接口。
type Service interface {
	// IndexDocuments 批量索引文档。
	IndexDocuments(ctx context.Context, paths []string) (*IndexingSummary, error)
	// IndexDirectory 索引目录中所有受支持格式的文档。
	IndexDirectory(ctx context.Context, dir string) (*IndexingSummary, error)
	// Query 执行检索增强问答。
	Query(ctx context.Context, question string, opts *QueryOptions) (*QueryResult, error)
	// DeleteDocument 删除指定文档的所有块，返回删除数量。
	DeleteDocument(ctx context.Context, fileName string) (int64, error)
	// GetStats 获取知识库统计信息。
	GetStats(ctx context.Context) (map[string]any, error)
}

// ServiceConfig DocMind 服务配置。
type ServiceConfig struct {
	ChunkerConfig   *ChunkerConfig
	IndexerConfig   *IndexerConfig
	RetrieverConfig *RetrieverConfig
	GeneratorConfig *GeneratorConfig
	// RerankStrategy 重排策略，空值表示 diversity。
	RerankStrategy RerankStrategy
}

// RAGService 组合 Indexer、Retriever、Reranker、Generator 和
// CitationResolver 提供完整的检索增强问答服务。
type RAGService struct {
	indexer       *Indexer
	retriever     *Retriever
	reranker      *Reranker
	generator     *Generator
	citations     *CitationResolver
	cache         *QueryCache
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	config        *ServiceConfig
	metrics       *metrics.RAGMetrics // 业务指标收集器
}

// NewRAGService 创建 DocMind 服务实例。
// 重排策略不合法时返回错误。
func NewRAGService(
	extractor extract.Extractor,
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	cache *QueryCache,
	config *ServiceConfig,
) (*RAGService, error) {
	logger.Info("Initializing DocMind service...")

	strategy := config.RerankStrategy
	if strategy == "" {
		strategy = RerankDiversity
	}
	reranker, err := NewReranker(strategy)
	if err != nil {
		return nil, err
	}

	chunker := NewChunker(nil, config.ChunkerConfig)
	indexer := NewIndexer(extractor, chunker, embedProvider, vectorStore, config.IndexerConfig)
	retriever := NewRetriever(vectorStore, embedProvider, config.RetrieverConfig)
	generator := NewGenerator(chatProvider, config.GeneratorConfig)

	logger.Info("DocMind service initialized successfully")

	return &RAGService{
		indexer:       indexer,
		retriever:     retriever,
		reranker:      reranker,
		generator:     generator,
		citations:     NewCitationResolver(),
		cache:         cache,
		store:         vectorStore,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		config:        config,
		metrics:       metrics.GetRAGMetrics(), // 初始化全局指标实例
	}, nil
}

// EnsureCollection 确保存储集合存在。
func (s *RAGService) EnsureCollection(ctx context.Context) error {
	return s.indexer.EnsureCollection(ctx)
}

// IndexDocuments 批量索引文档。
func (s *RAGService) IndexDocuments(ctx context.Context, paths []string) (*IndexingSummary, error) {
	summary, err := s.indexer.IndexDocuments(ctx, paths)
	if summary != nil {
		s.recordIndexing(summary)
	}
	return summary, err
}

// IndexDirectory 索引目录中所有受支持格式的文档。
func (s *RAGService) IndexDirectory(ctx context.Context, dir string) (*IndexingSummary, error) {
	summary, err := s.indexer.IndexDirectory(ctx, dir)
	if summary != nil {
		s.recordIndexing(summary)
	}
	return summary, err
}

// recordIndexing 按文档粒度记录索引指标。
func (s *RAGService) recordIndexing(summary *IndexingSummary) {
	for _, result := range summary.Results {
		switch result.Status {
		case IndexStatusSuccess:
			s.metrics.RecordIndexing(1, result.ChunksStored, nil)
		case IndexStatusFailed:
			s.metrics.RecordIndexing(0, 0, ErrDocumentProcessing)
		}
	}
}

// Query 执行检索增强问答：检索、重排、生成、引用解析。
func (s *RAGService) Query(ctx context.Context, question string, opts *QueryOptions) (*QueryResult, error) {
	var queryErr error
	defer func() {
		// 记录查询指标（缓存命中/未命中在下面分别记录）
		if queryErr != nil {
			s.metrics.RecordQuery(false, queryErr)
		}
	}()

	// 1. 尝试从缓存获取。带覆盖参数的查询不走缓存，
	// 避免不同 top_k/过滤条件共享同一个键。
	cacheable := opts == nil || (opts.TopK == 0 && len(opts.Filters) == 0 && !opts.SkipRerank)
	if s.cache != nil && cacheable {
		cachedResult, err := s.cache.Get(ctx, question)
		if err == nil && cachedResult != nil {
			// 缓存命中，直接返回
			s.metrics.RecordQuery(true, nil)
			return cachedResult, nil
		}
		// 缓存未命中或出错，继续正常流程
	}

	// 2. 检索相关文档
	var retrieveOpts *RetrieveOptions
	if opts != nil {
		retrieveOpts = &RetrieveOptions{TopK: opts.TopK, Filters: opts.Filters}
	}

	retrievalStart := time.Now()
	retrieval, err := s.retriever.RetrieveWithContext(ctx, question, retrieveOpts)
	s.metrics.RecordRetrieval(time.Since(retrievalStart), err)
	if err != nil {
		queryErr = err
		return nil, err
	}

	// 检索为空时返回固定回答，不调用 LLM，也不写缓存：
	// 后续的文档索引应当能改变这个回答。
	if len(retrieval.Chunks) == 0 {
		logger.Warnf("No relevant chunks found for question: %s", question)
		s.metrics.RecordQuery(false, nil)
		return &QueryResult{
			Question:      question,
			Answer:        noResultsAnswer,
			Sources:       []*RetrievedChunk{},
			Citations:     []int{},
			CitationMap:   map[int]*CitationSource{},
			CitationValid: true,
			AvgSimilarity: 0.0,
			NumSources:    0,
			SourceNames:   []string{},
		}, nil
	}

	// 3. 重排。之后的提示词构造和引用映射必须使用同一个
	// chunks 切片，保证引用编号与来源一一对应。
	chunks := retrieval.Chunks
	if opts == nil || !opts.SkipRerank {
		chunks = s.reranker.Rerank(chunks)
	}

	// 4. 生成答案
	llmStart := time.Now()
	answer, err := s.generator.GenerateAnswer(ctx, question, chunks)
	s.metrics.RecordLLMCall(time.Since(llmStart), err)
	if err != nil {
		queryErr = err
		return nil, err
	}

	// 5. 解析并校验引用。校验失败不阻断回答，结果随响应返回。
	citations := s.citations.ExtractCitations(answer)
	valid, citationErrs := s.citations.ValidateCitations(answer, len(chunks))
	citationMap := s.citations.MapToSources(answer, chunks)
	s.metrics.RecordCitationValidation(valid)

	var errStrings []string
	if !valid {
		errStrings = make([]string, len(citationErrs))
		for i, cerr := range citationErrs {
			errStrings[i] = cerr.Error()
		}
		logger.Warnw("citation validation failed",
			"question", question,
			"errors", errStrings,
		)
	}

	result := &QueryResult{
		Question:       question,
		Answer:         answer,
		Sources:        chunks,
		Citations:      citations,
		CitationMap:    citationMap,
		CitationValid:  valid,
		CitationErrors: errStrings,
		AvgSimilarity:  retrieval.AvgSimilarity,
		NumSources:     retrieval.NumSources,
		SourceNames:    retrieval.SourceNames,
	}

	logger.Infof("Query complete: %d citations, %d sources", len(citations), len(chunks))

	// 6. 写入缓存
	if s.cache != nil && cacheable {
		// 缓存写入失败不影响正常返回，错误已在 cache.Set 中记录
		_ = s.cache.Set(ctx, question, result)
	}

	// 记录缓存未命中的成功查询
	s.metrics.RecordQuery(false, nil)

	return result, nil
}

// DeleteDocument 删除指定文档的所有块。
func (s *RAGService) DeleteDocument(ctx context.Context, fileName string) (int64, error) {
	return s.indexer.DeleteDocument(ctx, fileName)
}

// GetStats 获取知识库统计信息。
func (s *RAGService) GetStats(ctx context.Context) (map[string]any, error) {
	count, err := s.store.Count(ctx, s.config.IndexerConfig.Collection)
	if err != nil {
		return nil, err
	}

	stats := map[string]any{
		"collection":     s.config.IndexerConfig.Collection,
		"chunk_count":    count,
		"embed_provider": s.embedProvider.Name(),
		"chat_provider":  s.chatProvider.Name(),
		"chunking": map[string]any{
			"chunk_size":     s.indexer.chunker.config.ChunkSize,
			"chunk_overlap":  s.indexer.chunker.config.ChunkOverlap,
			"max_chunk_size": s.indexer.chunker.config.MaxChunkSize,
		},
		"retrieval": map[string]any{
			"top_k":                s.retriever.config.TopK,
			"similarity_threshold": s.retriever.config.SimilarityThreshold,
			"rerank_strategy":      string(s.reranker.Strategy()),
		},
	}

	// 添加缓存统计信息
	if s.cache != nil {
		cacheStats, err := s.cache.GetStats(ctx)
		if err == nil {
			stats["cache"] = cacheStats
		}
	}

	// 添加业务指标统计
	stats["metrics"] = s.metrics.Stats()

	return stats, nil
}

// 确保 RAGService 实现了 Service 接口。
var _ Service = (*RAGService)(nil)
