package biz

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/docmind/internal/pkg/docmind/textutil"
	"github.com/kart-io/docmind/pkg/llm"
)

// excerptMaxLen 提示词中单个来源摘录的最大字符数。
const excerptMaxLen = 800

// noResultsAnswer 检索无命中时的固定回答。
const noResultsAnswer = "I couldn't find any relevant information in the indexed documents to answer your question."

// defaultSystemPrompt 默认系统提示词，要求回答只依据来源并带 [n] 引用。
const defaultSystemPrompt = `You are a helpful AI assistant that answers questions based ONLY on the provided source documents.

Your task:
1. Read the sources carefully
2. Provide a comprehensive, detailed answer to the user's question
3. ALWAYS cite your sources using [1], [2], etc. notation after each statement
4. If the information is not found in the sources, clearly state: "I don't find supporting information in the provided sources."
5. Do not make up or infer information beyond what's explicitly stated in the sources

Format your answer as:
- Provide a thorough, well-explained answer to the question
- Support each claim with citations [1], [2], etc.
- Include relevant details and context from the sources
- At the end, add a "Sources used:" section listing the sources

Be detailed, precise, and helpful. Aim for comprehensive answers that fully address the question.`

// defaultPromptTemplate 默认用户提示词模板。
const defaultPromptTemplate = `Sources:
{{context}}

Question: {{question}}

Please answer the question using only the sources provided above. Remember to cite your sources using [1], [2], etc.`

// GeneratorConfig 生成器配置。
type GeneratorConfig struct {
	// SystemPrompt 系统提示词。
	SystemPrompt string
	// PromptTemplate 用户提示词模板，{{context}} 与 {{question}} 为占位符。
	PromptTemplate string
}

// DefaultGeneratorConfig 返回默认生成器配置。
func DefaultGeneratorConfig() *GeneratorConfig {
	return &GeneratorConfig{
		SystemPrompt:   defaultSystemPrompt,
		PromptTemplate: defaultPromptTemplate,
	}
}

// Generator 负责答案生成。
type Generator struct {
	chatProvider llm.ChatProvider
	config       *GeneratorConfig
}

// NewGenerator 创建生成器实例。config 为 nil 时使用默认配置。
func NewGenerator(chatProvider llm.ChatProvider, config *GeneratorConfig) *Generator {
	if config == nil {
		config = DefaultGeneratorConfig()
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = defaultSystemPrompt
	}
	if config.PromptTemplate == "" {
		config.PromptTemplate = defaultPromptTemplate
	}
	return &Generator{
		chatProvider: chatProvider,
		config:       config,
	}
}

// GenerateAnswer 根据检索结果生成带引用的答案。
// chunks 的顺序决定引用编号：第 n 个块对应 [n]。
func (g *Generator) GenerateAnswer(ctx context.Context, question string, chunks []*RetrievedChunk) (string, error) {
	if len(chunks) == 0 {
		return noResultsAnswer, nil
	}

	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: context cancelled before generation: %w", ErrGeneration, ctx.Err())
	}

	prompt := strings.ReplaceAll(g.config.PromptTemplate, "{{context}}", g.FormatSources(chunks))
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)

	logger.Info("Calling LLM to generate answer...")
	answer, err := g.chatProvider.Generate(ctx, prompt, g.config.SystemPrompt)
	if err != nil {
		logger.Errorf("LLM generation failed: %v", err)
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	logger.Infof("LLM answer generated (length: %d)", len(answer))
	return answer, nil
}

// FormatSources 将检索到的块格式化为编号来源区块，
// 每块形如 [n] 文件名 - Page 页码，摘录加引号且截断到 800 字符。
func (g *Generator) FormatSources(chunks []*RetrievedChunk) string {
	blocks := make([]string, len(chunks))
	for i, chunk := range chunks {
		text := chunk.Text
		if utf8.RuneCountInString(text) > excerptMaxLen {
			text = textutil.TruncateString(text, excerptMaxLen) + "..."
		}
		blocks[i] = fmt.Sprintf("[%d] %s - Page %d\n\"%s\"", i+1, chunk.FileName, chunk.Page, text)
	}
	return strings.Join(blocks, "\n\n")
}
