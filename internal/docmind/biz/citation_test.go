package biz

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractCitations(t *testing.T) {
	resolver := NewCitationResolver()

	tests := []struct {
		name string
		text string
		want []int
	}{
		{
			name: "去重并升序",
			text: "As shown in [3], the result [1] holds. See also [3] and [2].",
			want: []int{1, 2, 3},
		},
		{
			name: "相邻引用",
			text: "Revenue grew [2]. Costs fell [1][1].",
			want: []int{1, 2},
		},
		{
			name: "无引用",
			text: "There are no markers here.",
			want: []int{},
		},
		{
			name: "多位数编号",
			text: "Late sources [10] and [12].",
			want: []int{10, 12},
		},
		{
			name: "忽略非数字括号",
			text: "Brackets [a] and [12b] are not citations, but [4] is.",
			want: []int{4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.ExtractCitations(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractCitations() = %v, 期望 %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("ExtractCitations() = %v, 期望 %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestValidateCitations(t *testing.T) {
	resolver := NewCitationResolver()

	// 所有引用都在范围内
	valid, errs := resolver.ValidateCitations("Revenue grew [2]. Costs fell [1][1].", 2)
	if !valid {
		t.Errorf("期望校验通过, 错误: %v", errs)
	}
	if len(errs) != 0 {
		t.Errorf("错误数量 = %d, 期望 0", len(errs))
	}

	// 越界引用 [5]，只有 2 个来源
	valid, errs = resolver.ValidateCitations("The claim [5] is unsupported.", 2)
	if valid {
		t.Error("越界引用应校验失败")
	}
	if len(errs) != 1 {
		t.Fatalf("错误数量 = %d, 期望 1", len(errs))
	}
	if !strings.Contains(errs[0].Error(), "5") {
		t.Errorf("错误信息应包含越界编号 5: %v", errs[0])
	}
	if !strings.Contains(errs[0].Error(), "2 sources") {
		t.Errorf("错误信息应包含可用来源数: %v", errs[0])
	}
	if !errors.Is(errs[0], ErrCitation) {
		t.Errorf("错误应属于 ErrCitation: %v", errs[0])
	}

	// 每个越界编号各产生一条错误
	_, errs = resolver.ValidateCitations("[3] and [4] with [1].", 2)
	if len(errs) != 2 {
		t.Errorf("错误数量 = %d, 期望 2", len(errs))
	}

	// 无引用时校验通过
	valid, errs = resolver.ValidateCitations("No markers at all.", 0)
	if !valid || len(errs) != 0 {
		t.Errorf("无引用时应校验通过: valid=%v errs=%v", valid, errs)
	}
}

// TestCitationRoundTrip 验证提取、校验、映射的端到端闭环。
func TestCitationRoundTrip(t *testing.T) {
	resolver := NewCitationResolver()

	chunks := []*RetrievedChunk{
		rchunk("c1", "finance.pdf", 0.9),
		rchunk("c2", "costs.txt", 0.8),
	}
	chunks[0].Page = 4
	chunks[1].Page = 2

	answer := "Revenue grew [2]. Costs fell [1][1]."

	citations := resolver.ExtractCitations(answer)
	if len(citations) != 2 || citations[0] != 1 || citations[1] != 2 {
		t.Fatalf("ExtractCitations() = %v, 期望 [1 2]", citations)
	}

	valid, errs := resolver.ValidateCitations(answer, len(chunks))
	if !valid {
		t.Fatalf("期望校验通过, 错误: %v", errs)
	}

	mapping := resolver.MapToSources(answer, chunks)
	if len(mapping) != 2 {
		t.Fatalf("映射条目 = %d, 期望 2", len(mapping))
	}

	// 编号 n 对应 chunks[n-1]
	if mapping[1].FileName != "finance.pdf" || mapping[1].Page != 4 {
		t.Errorf("mapping[1] = %+v", mapping[1])
	}
	if mapping[2].FileName != "costs.txt" || mapping[2].Page != 2 {
		t.Errorf("mapping[2] = %+v", mapping[2])
	}
	if mapping[1].Text != chunks[0].Text {
		t.Errorf("mapping[1].Text = %q", mapping[1].Text)
	}
	if mapping[1].SimilarityScore != 0.9 {
		t.Errorf("mapping[1].SimilarityScore = %v", mapping[1].SimilarityScore)
	}
}

// TestMapToSourcesOutOfRange 验证越界引用在映射中被静默跳过。
func TestMapToSourcesOutOfRange(t *testing.T) {
	resolver := NewCitationResolver()

	chunks := []*RetrievedChunk{
		rchunk("c1", "a.pdf", 0.9),
		rchunk("c2", "b.pdf", 0.8),
	}

	mapping := resolver.MapToSources("Valid [1] but invalid [5].", chunks)
	if len(mapping) != 1 {
		t.Fatalf("映射条目 = %d, 期望 1", len(mapping))
	}
	if _, ok := mapping[5]; ok {
		t.Error("越界编号 5 不应出现在映射中")
	}
	if _, ok := mapping[1]; !ok {
		t.Error("有效编号 1 应出现在映射中")
	}
}

func TestFormatCitationLinks(t *testing.T) {
	resolver := NewCitationResolver()

	// 空映射
	if got := resolver.FormatCitationLinks(nil); got != "No citations found." {
		t.Errorf("空映射输出 = %q", got)
	}

	mapping := map[int]*CitationSource{
		2: {FileName: "costs.txt", Page: 2, SimilarityScore: 0.75},
		1: {FileName: "finance.pdf", Page: 4, SimilarityScore: 0.9},
	}

	got := resolver.FormatCitationLinks(mapping)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("输出行数 = %d: %q", len(lines), got)
	}
	if lines[0] != "References:" {
		t.Errorf("首行 = %q", lines[0])
	}
	// 按编号升序输出
	if lines[1] != "[1] finance.pdf (Page 4) - Relevance: 0.90" {
		t.Errorf("第 1 条 = %q", lines[1])
	}
	if lines[2] != "[2] costs.txt (Page 2) - Relevance: 0.75" {
		t.Errorf("第 2 条 = %q", lines[2])
	}
}
