package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/docmind/internal/docmind/extract"
	"github.com/kart-io/docmind/internal/pkg/docmind/textutil"
	"github.com/kart-io/docmind/internal/pkg/docmind/tokenutil"
)

// ChunkerConfig 分块器配置。
type ChunkerConfig struct {
	// ChunkSize 目标块大小（token 数）。
	ChunkSize int
	// ChunkOverlap 相邻块之间的重叠预算（token 数）。
	ChunkOverlap int
	// MaxChunkSize 单句允许的最大 token 数，超过则按词拆分。
	MaxChunkSize int
}

// DefaultChunkerConfig 返回默认分块配置。
func DefaultChunkerConfig() *ChunkerConfig {
	return &ChunkerConfig{
		ChunkSize:    300,
		ChunkOverlap: 50,
		MaxChunkSize: 500,
	}
}

// Chunker 句子感知的文本分块器。
//
// 贪心地将句子累进到当前块，直到再加一句就会超出 token 预算；
// 关闭当前块后，从其尾部取一段累计 token 不超过重叠预算的句子窗口，
// 作为下一块的开头，保证相邻块之间有上下文衔接。
type Chunker struct {
	counter tokenutil.Counter
	config  *ChunkerConfig
}

// NewChunker 创建分块器实例。counter 为 nil 时使用默认计数器，
// config 为 nil 时使用默认配置。
func NewChunker(counter tokenutil.Counter, config *ChunkerConfig) *Chunker {
	if counter == nil {
		counter = tokenutil.NewCounter()
	}
	if config == nil {
		config = DefaultChunkerConfig()
	}
	logger.Infof("Chunker initialized: chunk_size=%d, overlap=%d, max=%d",
		config.ChunkSize, config.ChunkOverlap, config.MaxChunkSize)
	return &Chunker{
		counter: counter,
		config:  config,
	}
}

// CountTokens 返回文本的 token 数。
func (c *Chunker) CountTokens(text string) (int, error) {
	return c.counter.Count(text)
}

// ChunkText 将文本切分为带重叠的块。空白输入返回空结果且无错误；
// token 计数失败则整次调用失败，不返回部分结果。
func (c *Chunker) ChunkText(text string, meta ChunkMetadata) ([]*Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sentences := textutil.SplitSentences(text)

	var chunks []*Chunk
	var current []string
	currentTokens := 0
	startChar := 0

	for _, sentence := range sentences {
		sentenceTokens, err := c.counter.Count(sentence)
		if err != nil {
			return nil, fmt.Errorf("%w: counting tokens: %w", ErrChunking, err)
		}

		// 单句超过最大块限制：按词拆分，不与其他句子合块
		if sentenceTokens > c.config.MaxChunkSize {
			logger.Warnf("Sentence exceeds max chunk size (%d tokens), splitting by words", sentenceTokens)

			if len(current) > 0 {
				chunk, err := c.newChunk(strings.Join(current, " "), startChar, len(chunks), meta)
				if err != nil {
					return nil, err
				}
				chunks = append(chunks, chunk)
				current = nil
				currentTokens = 0
			}

			pieces, err := c.splitLongSentence(sentence)
			if err != nil {
				return nil, err
			}
			for _, piece := range pieces {
				chunk, err := c.newChunk(piece, startChar, len(chunks), meta)
				if err != nil {
					return nil, err
				}
				chunks = append(chunks, chunk)
				startChar += len(piece)
			}
			continue
		}

		if currentTokens+sentenceTokens > c.config.ChunkSize && len(current) > 0 {
			chunkText := strings.Join(current, " ")
			chunk, err := c.newChunk(chunkText, startChar, len(chunks), meta)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, chunk)

			overlap, overlapTokens, err := c.overlapWindow(current)
			if err != nil {
				return nil, err
			}

			// 重叠窗口的起始偏移通过在刚关闭的块文本中反向查找定位，
			// 找不到时退化为从块末尾继续
			if len(overlap) > 0 {
				overlapText := strings.Join(overlap, " ")
				if idx := strings.LastIndex(chunkText, overlapText); idx >= 0 {
					startChar = idx
				} else {
					startChar = len(chunkText)
				}
			} else {
				startChar += len(chunkText)
			}

			current = overlap
			currentTokens = overlapTokens
		}

		current = append(current, sentence)
		currentTokens += sentenceTokens
	}

	// 末尾未满的块始终输出
	if len(current) > 0 {
		chunk, err := c.newChunk(strings.Join(current, " "), startChar, len(chunks), meta)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	logger.Debugf("Created %d chunks from text", len(chunks))
	return chunks, nil
}

// ChunkDocument 对提取出的整篇文档分块，每页的来源信息写入该页的块，
// 块序号跨页在文档内统一重排。
func (c *Chunker) ChunkDocument(doc *extract.Document) ([]*Chunk, error) {
	meta := ChunkMetadata{
		FileName: doc.FileName,
		FileType: doc.FileType,
		FilePath: doc.FilePath,
	}

	var all []*Chunk
	for _, page := range doc.Content {
		pageMeta := meta
		pageMeta.Page = page.Number

		chunks, err := c.ChunkText(page.Text, pageMeta)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}

	for i, chunk := range all {
		chunk.ChunkIndex = i
	}

	logger.Infof("Chunked document '%s' into %d chunks", doc.FileName, len(all))
	return all, nil
}

// overlapWindow 从句子列表尾部反向收集累计 token 不超过重叠预算的句子，
// 保持原有顺序返回。
func (c *Chunker) overlapWindow(sentences []string) ([]string, int, error) {
	var overlap []string
	totalTokens := 0

	for i := len(sentences) - 1; i >= 0; i-- {
		tokens, err := c.counter.Count(sentences[i])
		if err != nil {
			return nil, 0, fmt.Errorf("%w: counting tokens: %w", ErrChunking, err)
		}
		if totalTokens+tokens > c.config.ChunkOverlap {
			break
		}
		overlap = append([]string{sentences[i]}, overlap...)
		totalTokens += tokens
	}

	return overlap, totalTokens, nil
}

// splitLongSentence 将超长句子按词切成不超过 ChunkSize 的片段。
func (c *Chunker) splitLongSentence(sentence string) ([]string, error) {
	words := strings.Fields(sentence)

	var pieces []string
	var current []string
	currentTokens := 0

	for _, word := range words {
		tokens, err := c.counter.Count(word)
		if err != nil {
			return nil, fmt.Errorf("%w: counting tokens: %w", ErrChunking, err)
		}
		if currentTokens+tokens > c.config.ChunkSize && len(current) > 0 {
			pieces = append(pieces, strings.Join(current, " "))
			current = []string{word}
			currentTokens = tokens
		} else {
			current = append(current, word)
			currentTokens += tokens
		}
	}

	if len(current) > 0 {
		pieces = append(pieces, strings.Join(current, " "))
	}

	return pieces, nil
}

func (c *Chunker) newChunk(text string, startChar, index int, meta ChunkMetadata) (*Chunk, error) {
	tokens, err := c.counter.Count(text)
	if err != nil {
		return nil, fmt.Errorf("%w: counting tokens: %w", ErrChunking, err)
	}

	page := meta.Page
	if page == 0 {
		page = 1
	}

	return &Chunk{
		Text:        strings.TrimSpace(text),
		ChunkIndex:  index,
		StartOffset: startChar,
		EndOffset:   startChar + len(text),
		TokenCount:  tokens,
		CharCount:   len(text),
		FileName:    meta.FileName,
		FileType:    meta.FileType,
		FilePath:    meta.FilePath,
		Page:        page,
	}, nil
}
