package metrics

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// newTestMetrics 获取全局实例并清零，保证用例之间互不干扰。
func newTestMetrics() *RAGMetrics {
	m := GetRAGMetrics()
	m.Reset()
	return m
}

func TestGetRAGMetrics(t *testing.T) {
	// 获取全局单例
	m1 := GetRAGMetrics()
	m2 := GetRAGMetrics()

	// 应该返回同一个实例
	assert.Same(t, m1, m2, "应该返回同一个单例实例")
}

func TestRecordQuery(t *testing.T) {
	m := newTestMetrics()

	// 测试成功查询（缓存命中）
	m.RecordQuery(true, nil)
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.queriesTotal))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.queriesCacheHits))
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.queriesCacheMisses))
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.queriesErrors))

	// 测试成功查询（缓存未命中）
	m.RecordQuery(false, nil)
	assert.Equal(t, uint64(2), atomic.LoadUint64(&m.queriesTotal))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.queriesCacheHits))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.queriesCacheMisses))

	// 测试失败查询
	m.RecordQuery(false, assert.AnError)
	assert.Equal(t, uint64(3), atomic.LoadUint64(&m.queriesTotal))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.queriesErrors))
	// 失败不计入未命中
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.queriesCacheMisses))
}

func TestRecordRetrieval(t *testing.T) {
	m := newTestMetrics()

	// 测试成功检索
	m.RecordRetrieval(100*time.Millisecond, nil)
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.retrievalTotal))
	assert.InDelta(t, 0.1, m.retrievalDuration, 0.01)
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.retrievalErrors))

	// 测试失败检索：计入错误，不累计耗时
	m.RecordRetrieval(50*time.Millisecond, assert.AnError)
	assert.Equal(t, uint64(2), atomic.LoadUint64(&m.retrievalTotal))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.retrievalErrors))
	assert.InDelta(t, 0.1, m.retrievalDuration, 0.01)
}

func TestRecordLLMCall(t *testing.T) {
	m := newTestMetrics()

	// 测试成功的 LLM 调用
	m.RecordLLMCall(500*time.Millisecond, nil)
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.llmCallsTotal))
	assert.InDelta(t, 0.5, m.llmCallsDuration, 0.01)
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.llmCallsErrors))

	// 测试失败的 LLM 调用：计入错误，不累计耗时
	m.RecordLLMCall(200*time.Millisecond, assert.AnError)
	assert.Equal(t, uint64(2), atomic.LoadUint64(&m.llmCallsTotal))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.llmCallsErrors))
	assert.InDelta(t, 0.5, m.llmCallsDuration, 0.01)
}

func TestRecordCitationValidation(t *testing.T) {
	m := newTestMetrics()

	m.RecordCitationValidation(true)
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.citationChecksTotal))
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.citationInvalidTotal))

	m.RecordCitationValidation(false)
	assert.Equal(t, uint64(2), atomic.LoadUint64(&m.citationChecksTotal))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.citationInvalidTotal))
}

func TestRecordIndexing(t *testing.T) {
	m := newTestMetrics()

	// 测试成功索引
	m.RecordIndexing(1, 10, nil)
	m.RecordIndexing(1, 15, nil)
	assert.Equal(t, uint64(2), atomic.LoadUint64(&m.documentsIndexed))
	assert.Equal(t, uint64(25), atomic.LoadUint64(&m.chunksIndexed))
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.indexErrors))

	// 测试失败索引：只计错误
	m.RecordIndexing(0, 0, assert.AnError)
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.indexErrors))
	assert.Equal(t, uint64(2), atomic.LoadUint64(&m.documentsIndexed))
	assert.Equal(t, uint64(25), atomic.LoadUint64(&m.chunksIndexed))
}

func TestExport(t *testing.T) {
	m := newTestMetrics()

	m.RecordQuery(true, nil)
	m.RecordQuery(false, nil)
	m.RecordRetrieval(100*time.Millisecond, nil)
	m.RecordLLMCall(500*time.Millisecond, nil)
	m.RecordCitationValidation(false)
	m.RecordIndexing(2, 15, nil)

	output := m.Export("docmind", "rag")

	// 验证输出包含关键指标
	assert.Contains(t, output, "docmind_rag_queries_total 2")
	assert.Contains(t, output, "docmind_rag_queries_cache_hits_total 1")
	assert.Contains(t, output, "docmind_rag_cache_hit_rate 0.5000")
	assert.Contains(t, output, "docmind_rag_retrieval_total 1")
	assert.Contains(t, output, "docmind_rag_llm_calls_total 1")
	assert.Contains(t, output, "docmind_rag_citation_checks_total 1")
	assert.Contains(t, output, "docmind_rag_citation_invalid_total 1")
	assert.Contains(t, output, "docmind_rag_documents_indexed_total 2")
	assert.Contains(t, output, "docmind_rag_chunks_indexed_total 15")

	// 验证包含 HELP 和 TYPE 注释
	assert.Contains(t, output, "# HELP docmind_rag_queries_total")
	assert.Contains(t, output, "# TYPE docmind_rag_queries_total counter")

	// 验证运行时间
	assert.Contains(t, output, "docmind_rag_uptime_seconds")
}

func TestExportWithoutSubsystem(t *testing.T) {
	m := newTestMetrics()

	m.RecordQuery(false, nil)

	output := m.Export("docmind", "")
	assert.Contains(t, output, "docmind_queries_total 1")
	assert.NotContains(t, output, "docmind__queries_total")
}

func TestStats(t *testing.T) {
	m := newTestMetrics()

	m.RecordQuery(true, nil)
	m.RecordQuery(true, nil)
	m.RecordQuery(true, nil)
	m.RecordQuery(false, nil)
	m.RecordQuery(false, assert.AnError)
	m.RecordRetrieval(100*time.Millisecond, nil)
	m.RecordRetrieval(300*time.Millisecond, nil)
	m.RecordLLMCall(500*time.Millisecond, nil)
	m.RecordCitationValidation(true)
	m.RecordCitationValidation(false)
	m.RecordIndexing(3, 30, nil)
	m.RecordIndexing(0, 0, assert.AnError)

	stats := m.Stats()

	// 验证查询统计
	queries := stats["queries"].(map[string]interface{})
	assert.Equal(t, uint64(5), queries["total"])
	assert.Equal(t, uint64(3), queries["cache_hits"])
	assert.Equal(t, uint64(1), queries["cache_misses"])
	assert.InDelta(t, 0.75, queries["cache_hit_rate"], 0.01)
	assert.Equal(t, uint64(1), queries["errors"])

	// 验证检索统计
	retrieval := stats["retrieval"].(map[string]interface{})
	assert.Equal(t, uint64(2), retrieval["total"])
	assert.InDelta(t, 0.4, retrieval["total_duration_secs"], 0.01)
	assert.InDelta(t, 0.2, retrieval["avg_duration_secs"], 0.01)

	// 验证 LLM 统计
	llm := stats["llm"].(map[string]interface{})
	assert.Equal(t, uint64(1), llm["calls_total"])
	assert.InDelta(t, 0.5, llm["avg_duration_secs"], 0.01)

	// 验证引用校验统计
	citations := stats["citations"].(map[string]interface{})
	assert.Equal(t, uint64(2), citations["checks_total"])
	assert.Equal(t, uint64(1), citations["invalid_total"])

	// 验证索引统计
	indexing := stats["indexing"].(map[string]interface{})
	assert.Equal(t, uint64(3), indexing["documents_indexed"])
	assert.Equal(t, uint64(30), indexing["chunks_indexed"])
	assert.Equal(t, uint64(1), indexing["errors"])

	// 验证运行时间
	uptime := stats["uptime_seconds"].(float64)
	assert.GreaterOrEqual(t, uptime, 0.0)
}

func TestReset(t *testing.T) {
	m := newTestMetrics()

	m.RecordQuery(false, nil)
	m.RecordRetrieval(time.Second, nil)
	m.RecordLLMCall(time.Second, nil)
	m.RecordCitationValidation(false)
	m.RecordIndexing(1, 5, nil)
	oldStartTime := m.startTime

	m.Reset()

	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.queriesTotal))
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.retrievalTotal))
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.llmCallsTotal))
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.citationChecksTotal))
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.documentsIndexed))
	assert.Equal(t, 0.0, m.retrievalDuration)
	assert.Equal(t, 0.0, m.llmCallsDuration)

	// 验证 startTime 已更新
	assert.False(t, m.startTime.Before(oldStartTime))
}

func TestCacheHitRateCalculation(t *testing.T) {
	testCases := []struct {
		name            string
		cacheHits       int
		cacheMisses     int
		expectedHitRate float64
	}{
		{
			name:            "完全命中",
			cacheHits:       100,
			cacheMisses:     0,
			expectedHitRate: 1.0,
		},
		{
			name:            "完全未命中",
			cacheHits:       0,
			cacheMisses:     100,
			expectedHitRate: 0.0,
		},
		{
			name:            "50%命中",
			cacheHits:       50,
			cacheMisses:     50,
			expectedHitRate: 0.5,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestMetrics()
			for i := 0; i < tc.cacheHits; i++ {
				m.RecordQuery(true, nil)
			}
			for i := 0; i < tc.cacheMisses; i++ {
				m.RecordQuery(false, nil)
			}

			stats := m.Stats()
			queries := stats["queries"].(map[string]interface{})
			assert.InDelta(t, tc.expectedHitRate, queries["cache_hit_rate"], 0.0001)
		})
	}
}

func TestAverageDurationCalculation(t *testing.T) {
	m := newTestMetrics()

	// 10 次检索，每次 5 秒
	for i := 0; i < 10; i++ {
		m.RecordRetrieval(5*time.Second, nil)
	}

	// 5 次 LLM 调用，每次 5 秒
	for i := 0; i < 5; i++ {
		m.RecordLLMCall(5*time.Second, nil)
	}

	stats := m.Stats()

	retrieval := stats["retrieval"].(map[string]interface{})
	assert.InDelta(t, 5.0, retrieval["avg_duration_secs"], 0.01)

	llm := stats["llm"].(map[string]interface{})
	assert.InDelta(t, 5.0, llm["avg_duration_secs"], 0.01)
}

func TestConcurrentAccess(t *testing.T) {
	m := newTestMetrics()

	var wg sync.WaitGroup
	numGoroutines := 100
	operationsPerGoroutine := 100

	// 并发记录查询
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				m.RecordQuery(j%2 == 0, nil)
			}
		}()
	}
	wg.Wait()

	// 验证计数正确
	expected := uint64(numGoroutines * operationsPerGoroutine)
	assert.Equal(t, expected, atomic.LoadUint64(&m.queriesTotal))

	// 并发记录 LLM 调用，验证耗时累计不丢失
	m.Reset()

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				m.RecordLLMCall(10*time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, expected, atomic.LoadUint64(&m.llmCallsTotal))
	assert.InDelta(t, float64(numGoroutines*operationsPerGoroutine)*0.01, m.llmCallsDuration, 0.5)
}
