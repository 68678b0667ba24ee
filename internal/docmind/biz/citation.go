package biz

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// citationPattern 匹配回答文本中的 [1]、[2]、[10] 这类引用标记。
var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// CitationResolver 从生成的回答中提取引用标记，校验范围并映射回来源块。
type CitationResolver struct{}

// NewCitationResolver 创建引用解析器实例。
func NewCitationResolver() *CitationResolver {
	return &CitationResolver{}
}

// ExtractCitations 提取回答中出现的引用编号，去重后升序返回。
func (r *CitationResolver) ExtractCitations(text string) []int {
	matches := citationPattern.FindAllStringSubmatch(text, -1)

	seen := make(map[int]bool)
	citations := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if !seen[n] {
			seen[n] = true
			citations = append(citations, n)
		}
	}

	sort.Ints(citations)
	return citations
}

// ValidateCitations 校验引用编号均落在 [1, numSources] 内。
// 每个越界编号产生一条错误；校验失败不影响回答返回。
func (r *CitationResolver) ValidateCitations(text string, numSources int) (bool, []error) {
	var errs []error
	for _, n := range r.ExtractCitations(text) {
		if n < 1 || n > numSources {
			errs = append(errs, fmt.Errorf("%w [%d]: only %d sources available", ErrCitation, n, numSources))
		}
	}
	return len(errs) == 0, errs
}

// MapToSources 将引用编号映射到来源快照。chunks 必须是构建提示词时
// 使用的同一有序切片，编号 n 对应 chunks[n-1]。越界编号静默跳过，
// 由 ValidateCitations 负责报告。
func (r *CitationResolver) MapToSources(text string, chunks []*RetrievedChunk) map[int]*CitationSource {
	mapping := make(map[int]*CitationSource)

	for _, n := range r.ExtractCitations(text) {
		if n < 1 || n > len(chunks) {
			continue
		}
		chunk := chunks[n-1]
		mapping[n] = &CitationSource{
			FileName:        chunk.FileName,
			Page:            chunk.Page,
			Text:            chunk.Text,
			SimilarityScore: chunk.SimilarityScore,
		}
	}

	return mapping
}

// FormatCitationLinks 将引用映射格式化为可读的参考列表。
func (r *CitationResolver) FormatCitationLinks(mapping map[int]*CitationSource) string {
	if len(mapping) == 0 {
		return "No citations found."
	}

	nums := make([]int, 0, len(mapping))
	for n := range mapping {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	lines := []string{"References:"}
	for _, n := range nums {
		source := mapping[n]
		lines = append(lines, fmt.Sprintf("[%d] %s (Page %d) - Relevance: %.2f",
			n, source.FileName, source.Page, source.SimilarityScore))
	}

	return strings.Join(lines, "\n")
}
