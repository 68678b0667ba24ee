package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/docmind/pkg/component/milvus"
)

// metaFields 为集合 schema 中的元数据字段，与 Chunk.Metadata 的键对应。
var metaFields = []milvus.MetaField{
	{Name: "file_name", DataType: entity.FieldTypeVarChar, MaxLen: 255},
	{Name: "file_type", DataType: entity.FieldTypeVarChar, MaxLen: 16},
	{Name: "file_path", DataType: entity.FieldTypeVarChar, MaxLen: 1024},
	{Name: "page", DataType: entity.FieldTypeInt64},
	{Name: "chunk_index", DataType: entity.FieldTypeInt64},
	{Name: "start_offset", DataType: entity.FieldTypeInt64},
	{Name: "end_offset", DataType: entity.FieldTypeInt64},
	{Name: "token_count", DataType: entity.FieldTypeInt64},
	{Name: "char_count", DataType: entity.FieldTypeInt64},
}

// intFields 在 Milvus 中以 Int64 存储，过滤表达式中不加引号。
var intFields = map[string]struct{}{
	"page":         {},
	"chunk_index":  {},
	"start_offset": {},
	"end_offset":   {},
	"token_count":  {},
	"char_count":   {},
}

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client *milvus.Client
}

// 确保 MilvusStore 实现了 VectorStore 接口。
var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// CreateCollection 创建 Milvus 集合。
func (s *MilvusStore) CreateCollection(ctx context.Context, config *CollectionConfig) error {
	schema := &milvus.CollectionSchema{
		Name:        config.Name,
		Description: config.Description,
		Dimension:   config.Dimension,
		MetaFields:  append([]milvus.MetaField{{Name: "text", DataType: entity.FieldTypeVarChar, MaxLen: 65535}}, metaFields...),
	}
	return s.client.CreateCollection(ctx, schema)
}

// Add 批量写入文档块到 Milvus。
// 仅持久化 schema 中声明的元数据字段，其余键被忽略。
func (s *MilvusStore) Add(ctx context.Context, collection string, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	embeddings := make([][]float32, len(chunks))
	metadata := map[string][]any{
		"id":   make([]any, len(chunks)),
		"text": make([]any, len(chunks)),
	}
	for _, f := range metaFields {
		metadata[f.Name] = make([]any, len(chunks))
	}

	for i, chunk := range chunks {
		embeddings[i] = chunk.Embedding
		metadata["id"][i] = chunk.ID
		metadata["text"][i] = chunk.Text
		for _, f := range metaFields {
			if _, ok := intFields[f.Name]; ok {
				metadata[f.Name][i] = metaInt64(chunk.Metadata, f.Name)
			} else {
				metadata[f.Name][i] = metaString(chunk.Metadata, f.Name)
			}
		}
	}

	data := &milvus.InsertData{
		Embeddings: embeddings,
		Metadata:   metadata,
	}

	if _, err := s.client.Insert(ctx, collection, data); err != nil {
		return fmt.Errorf("failed to insert into milvus: %w", err)
	}
	return nil
}

// Query 执行向量相似度检索。
// Milvus COSINE 分数为相似度，转换为余弦距离 1 - score。
func (s *MilvusStore) Query(ctx context.Context, collection string, vector []float32, topK int, filters map[string]string) ([]*QueryMatch, error) {
	outputFields := make([]string, 0, len(metaFields)+1)
	outputFields = append(outputFields, "text")
	for _, f := range metaFields {
		outputFields = append(outputFields, f.Name)
	}

	expr := compileFilters(filters)
	results, err := s.client.Search(ctx, collection, vector, topK, expr, outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	matches := make([]*QueryMatch, 0, len(results))
	for _, r := range results {
		text, _ := r.Metadata["text"].(string)
		delete(r.Metadata, "text")
		matches = append(matches, &QueryMatch{
			ID:       r.ID,
			Text:     text,
			Distance: 1 - float64(r.Score),
			Metadata: r.Metadata,
		})
	}

	return matches, nil
}

// DeleteByMetadata 删除元数据匹配的文档块。
// 空过滤条件被拒绝，避免误删整个集合。
func (s *MilvusStore) DeleteByMetadata(ctx context.Context, collection string, filters map[string]string) (int64, error) {
	expr := compileFilters(filters)
	if expr == "" {
		return 0, fmt.Errorf("empty metadata filter")
	}

	count, err := s.client.DeleteByExpr(ctx, collection, expr)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from milvus: %w", err)
	}
	return count, nil
}

// Count 返回集合中的文档块总数。
func (s *MilvusStore) Count(ctx context.Context, collection string) (int64, error) {
	return s.client.GetCollectionStats(ctx, collection)
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// compileFilters 将等值匹配条件编译为 Milvus 布尔表达式。
// 键按字典序排列保证表达式确定性，例如 `file_name == "a.pdf" and page == 3`。
func compileFilters(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := filters[k]
		if _, ok := intFields[k]; ok {
			parts = append(parts, fmt.Sprintf("%s == %s", k, v))
		} else {
			parts = append(parts, fmt.Sprintf("%s == %q", k, v))
		}
	}
	return strings.Join(parts, " and ")
}

func metaString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func metaInt64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	}
	return 0
}
