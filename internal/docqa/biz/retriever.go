package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/pkg/llm"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 返回的结果数量。
	TopK int
	// Collection 默认集合名称。
	Collection string
}

// RetrievalResult 表示检索结果。
type RetrievalResult struct {
	// Query 原始查询。
	Query string
	// Results 检索结果列表，按相似度降序排列。
	Results []*store.SearchResult
}

// Retriever 负责文档检索。
type Retriever struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	config        *RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	return &Retriever{
		store:         vectorStore,
		embedProvider: embedProvider,
		config:        config,
	}
}

// Retrieve 在默认集合中执行检索。
func (r *Retriever) Retrieve(ctx context.Context, question string) (*RetrievalResult, error) {
	return r.RetrieveFrom(ctx, r.config.Collection, question)
}

// RetrieveFrom 在指定集合中执行检索。
func (r *Retriever) RetrieveFrom(ctx context.Context, collection, question string) (*RetrievalResult, error) {
	logger.Infof("Processing query: %s", question)

	embedding, err := r.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := r.store.Search(ctx, collection, embedding, r.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", collection, err)
	}

	logger.Infow("retrieval completed",
		"collection", collection,
		"results", len(results),
		"top_k", r.config.TopK,
	)

	return &RetrievalResult{
		Query:   question,
		Results: results,
	}, nil
}
