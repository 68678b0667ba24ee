package biz

import "errors"

// 业务错误哨兵。各组件用 fmt.Errorf("%w: ...", Err...) 包装具体原因，
// 调用方通过 errors.Is 区分错误类别。
var (
	// ErrDocumentProcessing 文档读取或解析失败。
	ErrDocumentProcessing = errors.New("document processing failed")

	// ErrChunking 文本分块失败。
	ErrChunking = errors.New("chunking failed")

	// ErrEmbedding 向量嵌入生成失败。
	ErrEmbedding = errors.New("embedding generation failed")

	// ErrVectorStore 向量存储操作失败。
	ErrVectorStore = errors.New("vector store operation failed")

	// ErrRetrieval 检索失败（含空查询校验）。
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration LLM 回答生成失败。
	ErrGeneration = errors.New("answer generation failed")

	// ErrCitation 引用校验失败。
	ErrCitation = errors.New("invalid citation")
)
