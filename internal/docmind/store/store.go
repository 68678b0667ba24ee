package store

import (
	"context"
	"fmt"
)

// Chunk 表示向量库中的一条文档块记录。
type Chunk struct {
	// ID 文档块 ID，由调用方生成。
	ID string
	// Text 文档块文本内容。
	Text string
	// Embedding 嵌入向量。
	Embedding []float32
	// Metadata 元数据，值必须为标量类型（先经 SanitizeMetadata 处理）。
	Metadata map[string]any
}

// QueryMatch 表示一次向量检索的单条命中。
type QueryMatch struct {
	// ID 文档块 ID。
	ID string
	// Text 文档块文本内容。
	Text string
	// Distance 余弦距离，范围 [0, 2]，越小越相似。
	Distance float64
	// Metadata 元数据。
	Metadata map[string]any
}

// CollectionConfig 集合配置。
type CollectionConfig struct {
	// Name 集合名称。
	Name string
	// Description 集合描述。
	Description string
	// Dimension 向量维度。
	Dimension int
}

// VectorStore 定义向量存储接口。
// filters 为元数据等值匹配条件，多个条件取交集。
type VectorStore interface {
	// CreateCollection 创建集合，已存在时为空操作。
	CreateCollection(ctx context.Context, config *CollectionConfig) error

	// Add 批量写入文档块。
	Add(ctx context.Context, collection string, chunks []*Chunk) error

	// Query 向量相似度检索，返回按距离升序排列的最近 topK 条命中。
	Query(ctx context.Context, collection string, vector []float32, topK int, filters map[string]string) ([]*QueryMatch, error)

	// DeleteByMetadata 删除元数据匹配的所有文档块，返回删除条数。
	DeleteByMetadata(ctx context.Context, collection string, filters map[string]string) (int64, error)

	// Count 返回集合中的文档块总数。
	Count(ctx context.Context, collection string) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}

// SanitizeMetadata 将元数据值限制为标量类型。
// 字符串、布尔和数值原样保留，其余类型转为其字符串表示。
func SanitizeMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			out[k] = v
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
