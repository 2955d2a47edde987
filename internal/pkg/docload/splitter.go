package docload

import (
	"fmt"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// chunkSeparators 递归分割的分隔符，按优先级从段落到单词。
var chunkSeparators = []string{"\n\n", "\n", ". ", " "}

// Splitter 把文档切分为带元数据的文本块。
type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

// NewSplitter 创建递归字符分割器。
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(chunkSeparators),
		),
	}
}

// Piece 单个文本块及其来源元数据。
type Piece struct {
	// Content 块内容。
	Content string
	// Page 来源页码（从 1 开始，来源无页码时为 0）。
	Page int64
}

// SplitDocuments 切分一组文档，保留每个块的来源页码。
func (s *Splitter) SplitDocuments(docs []schema.Document) ([]Piece, error) {
	var pieces []Piece

	for _, doc := range docs {
		chunks, err := s.inner.SplitText(doc.PageContent)
		if err != nil {
			return nil, fmt.Errorf("failed to split document: %w", err)
		}

		page := pageOf(doc)
		for _, chunk := range chunks {
			pieces = append(pieces, Piece{Content: chunk, Page: page})
		}
	}

	return pieces, nil
}

// pageOf 从文档元数据中提取页码。PDF 加载器写入 "page" 字段。
func pageOf(doc schema.Document) int64 {
	v, ok := doc.Metadata["page"]
	if !ok {
		return 0
	}

	switch p := v.(type) {
	case int:
		return int64(p)
	case int64:
		return p
	case float64:
		return int64(p)
	default:
		return 0
	}
}
