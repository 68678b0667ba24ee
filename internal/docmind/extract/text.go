package extract

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/kart-io/docmind/internal/pkg/docmind/textutil"
)

// paragraphBreak 匹配段落分隔（一个或多个空行）。
var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// TextExtractor 提取纯文本和 Markdown 文件。
// 文本按空行分段，每个非空段落作为一个编号单元。
type TextExtractor struct{}

var _ FileExtractor = (*TextExtractor)(nil)

// Extensions 返回支持的扩展名。
func (*TextExtractor) Extensions() []string {
	return []string{".txt", ".md"}
}

// Extract 读取文件并按段落提取。
func (*TextExtractor) Extract(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}

	var pages []Page
	num := 0
	for _, block := range paragraphBreak.Split(string(data), -1) {
		text := textutil.NormalizeWhitespace(block)
		if text == "" {
			continue
		}
		num++
		pages = append(pages, Page{
			Number:    num,
			Text:      text,
			CharCount: len(text),
			WordCount: len(strings.Fields(text)),
		})
	}
	return pages, nil
}
