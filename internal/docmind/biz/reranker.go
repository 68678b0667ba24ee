package biz

import (
	"fmt"

	"github.com/kart-io/logger"
)

// RerankStrategy 重排策略。策略集合封闭，未知策略在构造时报错。
type RerankStrategy string

const (
	// RerankIdentity 保持存储层返回的相似度顺序不变。
	RerankIdentity RerankStrategy = "identity"
	// RerankDiversity 按来源文件交错排列，优先展示每个来源的最佳块。
	RerankDiversity RerankStrategy = "diversity"
)

// Reranker 对检索结果重新排序。
type Reranker struct {
	strategy RerankStrategy
}

// NewReranker 创建重排器实例。策略名不在封闭集合内时立即返回错误。
func NewReranker(strategy RerankStrategy) (*Reranker, error) {
	switch strategy {
	case RerankIdentity, RerankDiversity:
	default:
		return nil, fmt.Errorf("unknown rerank strategy: %q", strategy)
	}
	logger.Infof("Reranker initialized with strategy: %s", strategy)
	return &Reranker{strategy: strategy}, nil
}

// Strategy 返回构造时固定的策略。
func (r *Reranker) Strategy() RerankStrategy {
	return r.strategy
}

// Rerank 返回重排后的块序列。输出与输入包含完全相同的元素，
// 不增不减不重复。
func (r *Reranker) Rerank(chunks []*RetrievedChunk) []*RetrievedChunk {
	if r.strategy == RerankIdentity || len(chunks) <= 1 {
		return chunks
	}
	return r.diversityRerank(chunks)
}

// diversityRerank 按 FileName 分组（组内保序），再按组的首次出现顺序
// 轮转交错：先取每组第 0 个，再取每组第 1 个，依此类推。
// 每个来源的最佳块总是排在任何来源的第二个块之前。
func (r *Reranker) diversityRerank(chunks []*RetrievedChunk) []*RetrievedChunk {
	groups := make(map[string][]*RetrievedChunk)
	var order []string

	for _, chunk := range chunks {
		if _, ok := groups[chunk.FileName]; !ok {
			order = append(order, chunk.FileName)
		}
		groups[chunk.FileName] = append(groups[chunk.FileName], chunk)
	}

	reranked := make([]*RetrievedChunk, 0, len(chunks))
	for round := 0; len(reranked) < len(chunks); round++ {
		for _, name := range order {
			if round < len(groups[name]) {
				reranked = append(reranked, groups[name][round])
			}
		}
	}

	logger.Debugf("Diversity reranking: %d chunks from %d sources", len(chunks), len(order))
	return reranked
}
