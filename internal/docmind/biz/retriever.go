package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/docmind/internal/docmind/store"
	"github.com/kart-io/docmind/internal/pkg/docmind/textutil"
	"github.com/kart-io/docmind/pkg/llm"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 默认返回的结果数量。
	TopK int
	// SimilarityThreshold 最低相似度阈值，取值 [0,1]。
	SimilarityThreshold float64
	// Collection 集合名称。
	Collection string
}

// RetrieveOptions 单次检索的可选参数。
type RetrieveOptions struct {
	// TopK 覆盖配置的默认值，0 表示使用默认。
	TopK int
	// Filters 元数据等值过滤条件，原样传给向量存储。
	Filters map[string]string
}

// Retriever 负责向量检索与相似度过滤。
type Retriever struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	config        *RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	logger.Infof("Retriever initialized: top_k=%d, threshold=%.2f",
		config.TopK, config.SimilarityThreshold)
	return &Retriever{
		store:         vectorStore,
		embedProvider: embedProvider,
		config:        config,
	}
}

// Retrieve 检索与查询语义相关的文本块。
//
// 相似度由余弦距离换算：similarity = 1 - distance/2，取值 [0,1]。
// 阈值过滤发生在存储层 top-k 截断之后，结果数不超过 top-k。
func (r *Retriever) Retrieve(ctx context.Context, query string, opts *RetrieveOptions) ([]*RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrRetrieval)
	}

	topK := r.config.TopK
	var filters map[string]string
	if opts != nil {
		if opts.TopK > 0 {
			topK = opts.TopK
		}
		filters = opts.Filters
	}

	logger.Debugf("Retrieving documents for query: %q", textutil.TruncateString(query, 100))

	embedding, err := r.embedProvider.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrRetrieval, err)
	}

	matches, err := r.store.Query(ctx, r.config.Collection, embedding, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("%w: querying vector store: %w", ErrRetrieval, err)
	}

	chunks := make([]*RetrievedChunk, 0, len(matches))
	for _, m := range matches {
		similarity := 1.0 - m.Distance/2.0
		if similarity < r.config.SimilarityThreshold {
			continue
		}
		chunks = append(chunks, &RetrievedChunk{
			ID:              m.ID,
			Text:            m.Text,
			SimilarityScore: similarity,
			Distance:        m.Distance,
			FileName:        metaString(m.Metadata, "file_name"),
			FileType:        metaString(m.Metadata, "file_type"),
			Page:            metaInt(m.Metadata, "page"),
			ChunkIndex:      metaInt(m.Metadata, "chunk_index"),
		})
	}

	logger.Infof("Retrieved %d chunks, %d above threshold (%.2f)",
		len(matches), len(chunks), r.config.SimilarityThreshold)

	return chunks, nil
}

// RetrieveWithContext 检索并附带汇总统计，供回答生成使用。
func (r *Retriever) RetrieveWithContext(ctx context.Context, query string, opts *RetrieveOptions) (*RetrievalContext, error) {
	chunks, err := r.Retrieve(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	rc := &RetrievalContext{
		Query:       query,
		Chunks:      chunks,
		SourceNames: []string{},
	}
	if len(chunks) == 0 {
		return rc, nil
	}

	total := 0.0
	seen := make(map[string]bool)
	for _, chunk := range chunks {
		total += chunk.SimilarityScore
		if !seen[chunk.FileName] {
			seen[chunk.FileName] = true
			rc.SourceNames = append(rc.SourceNames, chunk.FileName)
		}
	}

	rc.AvgSimilarity = total / float64(len(chunks))
	rc.NumSources = len(rc.SourceNames)

	return rc, nil
}

// metaString 从元数据中取字符串值，缺失时返回空串。
func metaString(metadata map[string]any, key string) string {
	if v, ok := metadata[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// metaInt 从元数据中取整数值，兼容存储层返回的各种数值类型。
func metaInt(metadata map[string]any, key string) int {
	switch v := metadata[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
