package model

// QueryResult 问答结果。
type QueryResult struct {
	Answer  string        `json:"answer"`
	Sources []ChunkSource `json:"sources"`
}

// ChunkSource 答案引用的文档片段。
type ChunkSource struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Section      string  `json:"section,omitempty"`
	Page         int64   `json:"page,omitempty"`
	Content      string  `json:"content"`
	Score        float32 `json:"score"`
}

// Document 已索引文档的元信息。
type Document struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Source     string `json:"source"`
	ChunkCount int    `json:"chunk_count"`
	SizeBytes  int64  `json:"size_bytes"`
}
