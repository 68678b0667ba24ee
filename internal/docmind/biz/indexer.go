package biz

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/kart-io/docmind/internal/docmind/extract"
	"github.com/kart-io/docmind/internal/docmind/store"
	"github.com/kart-io/docmind/internal/pkg/docmind/docutil"
	"github.com/kart-io/docmind/pkg/llm"
)

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// Collection 集合名称。
	Collection string
	// EmbeddingDim 嵌入向量维度。
	EmbeddingDim int
}

// Indexer 负责文档索引：提取、分块、嵌入、存储。
//
// 每个文档独立走完状态机，单个文档的失败不会中断批量索引。
// 入库非事务性：嵌入或存储中途失败时已写入的块不回滚，
// 重新索引同一文档即可覆盖（后续可扩展为两阶段提交或对账任务）。
type Indexer struct {
	extractor     extract.Extractor
	chunker       *Chunker
	embedProvider llm.EmbeddingProvider
	store         store.VectorStore
	config        *IndexerConfig
}

// NewIndexer 创建索引器实例。
func NewIndexer(
	extractor extract.Extractor,
	chunker *Chunker,
	embedProvider llm.EmbeddingProvider,
	vectorStore store.VectorStore,
	config *IndexerConfig,
) *Indexer {
	return &Indexer{
		extractor:     extractor,
		chunker:       chunker,
		embedProvider: embedProvider,
		store:         vectorStore,
		config:        config,
	}
}

// EnsureCollection 确保目标集合存在，已存在时为空操作。
func (i *Indexer) EnsureCollection(ctx context.Context) error {
	cfg := &store.CollectionConfig{
		Name:        i.config.Collection,
		Description: "DocMind knowledge base collection",
		Dimension:   i.config.EmbeddingDim,
	}
	if err := i.store.CreateCollection(ctx, cfg); err != nil {
		return fmt.Errorf("%w: creating collection %q: %w", ErrVectorStore, i.config.Collection, err)
	}
	return nil
}

// IndexDocument 索引单个文档。任何阶段出错都转为 failed 结果返回，
// 不向上抛错；分块结果为空时返回 skipped。
func (i *Indexer) IndexDocument(ctx context.Context, path string) *IndexingResult {
	fileName := filepath.Base(path)
	logger.Infof("Indexing document: %s", path)

	doc, err := i.extractor.Extract(path)
	if err != nil {
		return failedResult(fileName, fmt.Errorf("%w: %w", ErrDocumentProcessing, err))
	}
	fileName = doc.FileName

	chunks, err := i.chunker.ChunkDocument(doc)
	if err != nil {
		return failedResult(fileName, err)
	}

	if len(chunks) == 0 {
		logger.Warnf("No chunks generated for %s", path)
		return &IndexingResult{
			FileName: fileName,
			Status:   IndexStatusSkipped,
			Reason:   "No text content",
		}
	}

	texts := make([]string, len(chunks))
	for idx, chunk := range chunks {
		texts[idx] = chunk.Text
	}

	embeddings, err := i.embedProvider.Embed(ctx, texts)
	if err != nil {
		return failedResult(fileName, fmt.Errorf("%w: %w", ErrEmbedding, err))
	}
	if len(embeddings) != len(chunks) {
		return failedResult(fileName, fmt.Errorf("%w: got %d embeddings for %d chunks",
			ErrEmbedding, len(embeddings), len(chunks)))
	}

	records := make([]*store.Chunk, len(chunks))
	for idx, chunk := range chunks {
		records[idx] = &store.Chunk{
			ID:        newChunkID(),
			Text:      chunk.Text,
			Embedding: embeddings[idx],
			Metadata: store.SanitizeMetadata(map[string]any{
				"file_name":    chunk.FileName,
				"file_type":    chunk.FileType,
				"file_path":    chunk.FilePath,
				"page":         chunk.Page,
				"chunk_index":  chunk.ChunkIndex,
				"start_offset": chunk.StartOffset,
				"end_offset":   chunk.EndOffset,
				"token_count":  chunk.TokenCount,
				"char_count":   chunk.CharCount,
			}),
		}
	}

	if err := i.store.Add(ctx, i.config.Collection, records); err != nil {
		return failedResult(fileName, fmt.Errorf("%w: %w", ErrVectorStore, err))
	}

	logger.Infof("Successfully indexed %s: %d chunks created, %d stored",
		fileName, len(chunks), len(records))

	return &IndexingResult{
		FileName:      fileName,
		Status:        IndexStatusSuccess,
		ChunksCreated: len(chunks),
		ChunksStored:  len(records),
		TotalPages:    doc.TotalPages,
	}
}

// IndexDocuments 批量索引文档。单个文档的失败被隔离为 failed 结果，
// 批次继续；仅 context 取消会提前返回，附带已完成部分的汇总。
func (i *Indexer) IndexDocuments(ctx context.Context, paths []string) (*IndexingSummary, error) {
	logger.Infof("Indexing %d documents", len(paths))

	summary := &IndexingSummary{Total: len(paths)}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result := i.IndexDocument(ctx, path)
		summary.Results = append(summary.Results, result)
		switch result.Status {
		case IndexStatusSuccess:
			summary.Successful++
		case IndexStatusFailed:
			summary.Failed++
		case IndexStatusSkipped:
			summary.Skipped++
		}
	}

	logger.Infof("Indexing complete: %d successful, %d failed, %d skipped",
		summary.Successful, summary.Failed, summary.Skipped)

	return summary, nil
}

// IndexDirectory 索引目录中所有受支持格式的文档。
func (i *Indexer) IndexDirectory(ctx context.Context, dir string) (*IndexingSummary, error) {
	logger.Infof("Indexing documents from: %s", dir)

	if !docutil.DirExists(dir) {
		return nil, fmt.Errorf("%w: directory does not exist: %s", ErrDocumentProcessing, dir)
	}

	files, err := docutil.FindFiles(dir, i.extractor.Supported())
	if err != nil {
		return nil, fmt.Errorf("%w: scanning directory %s: %w", ErrDocumentProcessing, dir, err)
	}

	logger.Infof("Found %d documents in %s", len(files), dir)
	return i.IndexDocuments(ctx, files)
}

// DeleteDocument 删除 file_name 等于给定值的所有块，返回删除数量。
// 谓词删除，与并发查询之间无事务隔离。
func (i *Indexer) DeleteDocument(ctx context.Context, fileName string) (int64, error) {
	deleted, err := i.store.DeleteByMetadata(ctx, i.config.Collection, map[string]string{
		"file_name": fileName,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: deleting document %q: %w", ErrVectorStore, fileName, err)
	}

	logger.Infof("Deleted document: %s (%d chunks)", fileName, deleted)
	return deleted, nil
}

func failedResult(fileName string, err error) *IndexingResult {
	logger.Errorf("Failed to index %s: %v", fileName, err)
	return &IndexingResult{
		FileName: fileName,
		Status:   IndexStatusFailed,
		Error:    err.Error(),
	}
}

// newChunkID 生成存储时使用的块标识。
func newChunkID() string {
	return ulid.Make().String()
}
