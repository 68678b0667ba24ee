package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/docmind/internal/pkg/docmind/textutil"
)

// MemoryStore 实现进程内向量存储，用于开发与测试。
// 距离度量与 Milvus 存储一致：余弦距离 1 - cos，范围 [0, 2]。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimension int
	chunks    []*Chunk
}

// 确保 MemoryStore 实现了 VectorStore 接口。
var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储实例。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

// CreateCollection 创建集合，已存在时为空操作。
func (s *MemoryStore) CreateCollection(_ context.Context, config *CollectionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[config.Name]; ok {
		return nil
	}
	s.collections[config.Name] = &memoryCollection{dimension: config.Dimension}
	return nil
}

// Add 批量写入文档块。
func (s *MemoryStore) Add(_ context.Context, collection string, chunks []*Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("collection %q not found", collection)
	}

	for _, chunk := range chunks {
		if len(chunk.Embedding) != coll.dimension {
			return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(chunk.Embedding), coll.dimension)
		}
	}

	for _, chunk := range chunks {
		stored := &Chunk{
			ID:        chunk.ID,
			Text:      chunk.Text,
			Embedding: append([]float32(nil), chunk.Embedding...),
			Metadata:  make(map[string]any, len(chunk.Metadata)),
		}
		for k, v := range chunk.Metadata {
			stored.Metadata[k] = v
		}
		coll.chunks = append(coll.chunks, stored)
	}
	return nil
}

// Query 按余弦距离升序返回最近的 topK 条命中。
func (s *MemoryStore) Query(_ context.Context, collection string, vector []float32, topK int, filters map[string]string) ([]*QueryMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q not found", collection)
	}
	if len(vector) != coll.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: got %d, want %d", len(vector), coll.dimension)
	}

	matches := make([]*QueryMatch, 0, len(coll.chunks))
	for _, chunk := range coll.chunks {
		if !matchesFilters(chunk.Metadata, filters) {
			continue
		}
		distance := 1 - textutil.CosineSimilarity(vector, chunk.Embedding)
		metadata := make(map[string]any, len(chunk.Metadata))
		for k, v := range chunk.Metadata {
			metadata[k] = v
		}
		matches = append(matches, &QueryMatch{
			ID:       chunk.ID,
			Text:     chunk.Text,
			Distance: distance,
			Metadata: metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteByMetadata 删除元数据匹配的文档块。
func (s *MemoryStore) DeleteByMetadata(_ context.Context, collection string, filters map[string]string) (int64, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("empty metadata filter")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("collection %q not found", collection)
	}

	kept := coll.chunks[:0]
	var deleted int64
	for _, chunk := range coll.chunks {
		if matchesFilters(chunk.Metadata, filters) {
			deleted++
			continue
		}
		kept = append(kept, chunk)
	}
	coll.chunks = kept
	return deleted, nil
}

// Count 返回集合中的文档块总数。
func (s *MemoryStore) Count(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("collection %q not found", collection)
	}
	return int64(len(coll.chunks)), nil
}

// Close 释放集合数据。
func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections = make(map[string]*memoryCollection)
	return nil
}

// matchesFilters 判断元数据是否满足所有等值条件。
// 比较基于值的字符串表示，与过滤条件的 map[string]string 形态对齐。
func matchesFilters(metadata map[string]any, filters map[string]string) bool {
	for k, want := range filters {
		v, ok := metadata[k]
		if !ok {
			return false
		}
		if fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}
