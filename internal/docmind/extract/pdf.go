package extract

import (
	"fmt"
	"strings"

	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"

	"github.com/kart-io/docmind/internal/pkg/docmind/textutil"
)

// PDFExtractor 按页提取 PDF 文本。
// 空白页被剔除，页码保留原始 PDF 页号（可能不连续）。
type PDFExtractor struct{}

var _ FileExtractor = (*PDFExtractor)(nil)

// Extensions 返回支持的扩展名。
func (*PDFExtractor) Extensions() []string {
	return []string{".pdf"}
}

// Extract 打开 PDF 并逐页提取纯文本。
// 单页提取失败只跳过该页，不中断整个文档。
func (*PDFExtractor) Extract(path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warnw("提取 PDF 页面文本失败，跳过该页", "path", path, "page", i, "error", err.Error())
			continue
		}

		clean := textutil.NormalizeWhitespace(text)
		if clean == "" {
			continue
		}
		pages = append(pages, Page{
			Number:    i,
			Text:      clean,
			CharCount: len(clean),
			WordCount: len(strings.Fields(clean)),
		})
	}
	return pages, nil
}
