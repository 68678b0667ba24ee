// Package tokenutil 提供基于 tiktoken 的 token 计数能力。
package tokenutil

import (
	"math"
	"strings"

	"github.com/kart-io/logger"
	"github.com/pkoukk/tiktoken-go"
)

// encodingName 与主流 embedding/chat 模型对齐的 BPE 编码。
const encodingName = "cl100k_base"

// Counter 统计一段文本的 token 数。
type Counter interface {
	Count(text string) (int, error)
}

// TiktokenCounter 使用 tiktoken BPE 编码精确计数。
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var _ Counter = (*TiktokenCounter)(nil)

// NewTiktokenCounter 加载 cl100k_base 编码。
// 编码文件不可用时返回错误，调用方应降级到 EstimateCounter。
func NewTiktokenCounter() (*TiktokenCounter, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

// Count 返回文本编码后的 token 数。
func (c *TiktokenCounter) Count(text string) (int, error) {
	return len(c.encoding.Encode(text, nil, nil)), nil
}

// EstimateCounter 按词数近似估算 token 数（1 词 ≈ 1.33 token）。
// 这是近似值，不保证与真实 BPE 编码一致。
type EstimateCounter struct{}

var _ Counter = EstimateCounter{}

// Count 返回 round(词数 * 1.33)。
func (EstimateCounter) Count(text string) (int, error) {
	words := len(strings.Fields(text))
	return int(math.Round(float64(words) * 1.33)), nil
}

// NewCounter 优先返回 tiktoken 计数器，加载失败时降级为词数估算。
func NewCounter() Counter {
	counter, err := NewTiktokenCounter()
	if err != nil {
		logger.Warnw("tiktoken 编码加载失败，降级为词数近似估算", "encoding", encodingName, "error", err.Error())
		return EstimateCounter{}
	}
	return counter
}
