package biz

// ChunkMetadata 分块时附加到每个块上的文档来源信息。
type ChunkMetadata struct {
	FileName string
	FileType string
	FilePath string
	// Page 页码（PDF）或段落号（文本文件），从 1 开始。零值按 1 处理。
	Page int
}

// Chunk 表示一个带位置与 token 统计信息的文本块。创建后不可变。
type Chunk struct {
	Text        string `json:"text"`
	ChunkIndex  int    `json:"chunk_index"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	TokenCount  int    `json:"token_count"`
	CharCount   int    `json:"char_count"`
	FileName    string `json:"file_name"`
	FileType    string `json:"file_type"`
	FilePath    string `json:"file_path,omitempty"`
	Page        int    `json:"page"`
}

// RetrievedChunk 表示一次查询命中的文本块，附相似度信息。仅在单次查询内有效。
type RetrievedChunk struct {
	// ID 存储时分配的块标识。
	ID   string `json:"id"`
	Text string `json:"text"`
	// SimilarityScore 相似度，取值 [0,1]，由距离单调换算而来。
	SimilarityScore float64 `json:"similarity_score"`
	// Distance 向量存储返回的原生余弦距离，取值 [0,2]。
	Distance   float64 `json:"distance"`
	FileName   string  `json:"file_name"`
	FileType   string  `json:"file_type,omitempty"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
}

// RetrievalContext 表示一次检索的结果及其汇总统计。
type RetrievalContext struct {
	Query  string            `json:"query"`
	Chunks []*RetrievedChunk `json:"chunks"`
	// AvgSimilarity 命中块的平均相似度，无命中时为 0.0。
	AvgSimilarity float64 `json:"avg_similarity"`
	// NumSources 命中块覆盖的源文件数。
	NumSources int `json:"num_sources"`
	// SourceNames 源文件名，按首次出现顺序排列。
	SourceNames []string `json:"source_names"`
}

// CitationSource 引用编号对应的来源快照。
type CitationSource struct {
	FileName        string  `json:"file_name"`
	Page            int     `json:"page"`
	Text            string  `json:"text"`
	SimilarityScore float64 `json:"similarity_score"`
}

// IndexStatus 单个文档的索引结果状态。
type IndexStatus string

const (
	// IndexStatusSuccess 文档成功入库。
	IndexStatusSuccess IndexStatus = "success"
	// IndexStatusFailed 某个阶段出错，文档未入库。
	IndexStatusFailed IndexStatus = "failed"
	// IndexStatusSkipped 文档无可索引文本。
	IndexStatusSkipped IndexStatus = "skipped"
)

// IndexingResult 单个文档的索引结果。
type IndexingResult struct {
	FileName string      `json:"file_name"`
	Status   IndexStatus `json:"status"`
	// ChunksCreated/ChunksStored/TotalPages 仅在 success 时填充。
	ChunksCreated int `json:"chunks_created,omitempty"`
	ChunksStored  int `json:"chunks_stored,omitempty"`
	TotalPages    int `json:"total_pages,omitempty"`
	// Error 仅在 failed 时填充。
	Error string `json:"error,omitempty"`
	// Reason 仅在 skipped 时填充。
	Reason string `json:"reason,omitempty"`
}

// IndexingSummary 批量索引的汇总。
type IndexingSummary struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Results    []*IndexingResult `json:"results"`
}

// QueryResult 一次问答查询的完整结果。
type QueryResult struct {
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Sources  []*RetrievedChunk `json:"sources"`
	// Citations 回答中出现的引用编号，去重升序。
	Citations []int `json:"citations"`
	// CitationMap 引用编号到来源快照的映射。
	CitationMap map[int]*CitationSource `json:"citation_map"`
	// CitationValid 所有引用编号均落在有效范围内。
	CitationValid bool `json:"citation_valid"`
	// CitationErrors 越界引用的描述，校验失败不阻断回答。
	CitationErrors []string `json:"citation_errors,omitempty"`
	AvgSimilarity  float64  `json:"avg_similarity"`
	NumSources     int      `json:"num_sources"`
	SourceNames    []string `json:"source_names"`
}
