// Package extract 从多种文档格式中提取带位置元数据的文本。
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Page 表示文档的一个页面或段落单元。
type Page struct {
	// Number 页码或段落序号，从 1 开始。
	Number int `json:"number"`
	// Text 清洗后的文本内容。
	Text string `json:"text"`
	// CharCount 字符数。
	CharCount int `json:"char_count"`
	// WordCount 词数。
	WordCount int `json:"word_count"`
}

// Document 表示一个已提取的文档。
type Document struct {
	// FileName 文件名（不含路径）。
	FileName string `json:"file_name"`
	// FileType 文件类型，如 "pdf"、"txt"。
	FileType string `json:"file_type"`
	// FilePath 文件完整路径。
	FilePath string `json:"file_path"`
	// Content 按页/段落组织的文本内容，空白单元已剔除。
	Content []Page `json:"content"`
	// TotalPages 非空页/段落总数。
	TotalPages int `json:"total_pages"`
}

// Extractor 将文件提取为结构化文档。
type Extractor interface {
	// Extract 提取单个文件。
	Extract(path string) (*Document, error)
	// Supported 返回支持的扩展名（含点，小写）。
	Supported() []string
}

// FileExtractor 处理特定扩展名的文件格式。
type FileExtractor interface {
	// Extract 提取文件内容为页/段落序列。
	Extract(path string) ([]Page, error)
	// Extensions 返回支持的扩展名（含点，小写）。
	Extensions() []string
}

// Registry 按扩展名分发到对应的 FileExtractor。
type Registry struct {
	extractors map[string]FileExtractor
}

var _ Extractor = (*Registry)(nil)

// NewRegistry 创建注册了内置提取器（txt/md/pdf）的 Registry。
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]FileExtractor)}
	r.Register(&TextExtractor{})
	r.Register(&PDFExtractor{})
	return r
}

// Register 注册一个文件提取器，后注册者覆盖同扩展名的先注册者。
func (r *Registry) Register(e FileExtractor) {
	for _, ext := range e.Extensions() {
		r.extractors[ext] = e
	}
}

// Supported 返回支持的扩展名列表，按字典序排列。
func (r *Registry) Supported() []string {
	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract 根据扩展名提取文件内容。
// 文件不存在或扩展名不受支持时返回错误。
func (r *Registry) Extract(path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	extractor, ok := r.extractors[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s (supported: %s)", ext, strings.Join(r.Supported(), ", "))
	}

	content, err := extractor.Extract(path)
	if err != nil {
		return nil, err
	}

	return &Document{
		FileName:   filepath.Base(path),
		FileType:   strings.TrimPrefix(ext, "."),
		FilePath:   path,
		Content:    content,
		TotalPages: len(content),
	}, nil
}
