// Package textutil 提供文档处理相关的文本工具函数。
package textutil

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// sentenceBoundary 匹配句子结束标点（可带收尾引号/括号）后跟空白。
var sentenceBoundary = regexp.MustCompile(`[.!?]+["')\]]*\s+`)

// abbreviations 中的词以句点结尾但不构成句子边界。
var abbreviations = map[string]struct{}{
	"mr.": {}, "mrs.": {}, "ms.": {}, "dr.": {}, "prof.": {},
	"sr.": {}, "jr.": {}, "st.": {}, "vs.": {}, "etc.": {},
	"e.g.": {}, "i.e.": {}, "fig.": {}, "no.": {}, "vol.": {},
	"inc.": {}, "ltd.": {}, "co.": {}, "dept.": {}, "approx.": {},
}

// SplitSentences 将文本分割为句子序列。
// 以 .!? 后跟空白作为边界；常见缩写（Dr.、e.g. 等）和单字母缩写
// （如 "J. Smith"）不触发分割。空白输入返回 nil。
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	locs := sentenceBoundary.FindAllStringIndex(text, -1)
	var sentences []string
	start := 0
	for _, loc := range locs {
		segment := text[start:loc[1]]
		if endsWithAbbreviation(segment) {
			continue
		}
		if s := strings.TrimSpace(segment); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func endsWithAbbreviation(segment string) bool {
	fields := strings.Fields(segment)
	if len(fields) == 0 {
		return false
	}
	last := strings.ToLower(strings.TrimRight(fields[len(fields)-1], `"')]`))
	if _, ok := abbreviations[last]; ok {
		return true
	}
	// 单字母首字母缩写，如人名中的 "J."
	if utf8.RuneCountInString(last) == 2 && strings.HasSuffix(last, ".") {
		r, _ := utf8.DecodeRuneInString(last)
		return unicode.IsLetter(r)
	}
	return false
}

// NormalizeWhitespace 将连续空白压缩为单个空格并去除首尾空白。
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，1 表示完全相同，-1 表示完全相反。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashString 计算字符串的 MD5 哈希值。
func HashString(s string) string {
	hash := md5.Sum([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// ContainsInt 检查整数切片是否包含指定元素。
func ContainsInt(slice []int, item int) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// ContainsString 检查字符串切片是否包含指定元素。
func ContainsString(slice []string, item string) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}
