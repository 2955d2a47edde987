package textutil

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"完全相同", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"正交向量", []float32{1, 0}, []float32{0, 1}, 0},
		{"相反向量", []float32{1, 0}, []float32{-1, 0}, -1},
		{"维度不一致", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"零向量", []float32{0, 0}, []float32{1, 1}, 0},
		{"空向量", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestHashString(t *testing.T) {
	h1 := HashString("document.pdf")
	h2 := HashString("document.pdf")
	h3 := HashString("other.pdf")

	assert.Len(t, h1, 32)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", TruncateString("hello", 10))
	assert.Equal(t, "he", TruncateString("hello world", 2))
	assert.Equal(t, "hello", TruncateString("hello", 5))
	assert.Equal(t, "", TruncateString("hello", 0))
	// 多字节字符按 rune 截断，结果不超过 maxLen 个字符
	assert.Equal(t, "中文", TruncateString("中文内容测试", 2))
	assert.LessOrEqual(t, utf8.RuneCountInString(TruncateString("中文内容测试", 3)), 3)
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a\n\nb\t c  "))
	assert.Equal(t, "", NormalizeWhitespace("   "))
}
