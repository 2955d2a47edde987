package biz

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/llm"
)

// Service 定义文档问答服务接口。
type Service interface {
	// IndexUpload 索引上传的文档内容。
	IndexUpload(ctx context.Context, filename string, r io.Reader) (*model.Document, error)
	// IndexFromURL 从 URL 下载并索引文档。
	IndexFromURL(ctx context.Context, url string) (*model.Document, error)
	// Query 对知识库执行问答。
	Query(ctx context.Context, question string) (*model.QueryResult, error)
	// AnswerDocument 下载单个文档并依次回答一组问题。
	// 文档索引到一次性的临时集合，处理完成后即删除。
	AnswerDocument(ctx context.Context, documentURL string, questions []string) ([]string, error)
	// ClearCache 清除查询缓存。
	ClearCache(ctx context.Context) error
	// GetStats 获取知识库统计信息。
	GetStats(ctx context.Context) (map[string]any, error)
}

// DocQAService 组合 Indexer、Retriever 和 Generator 提供完整的问答服务。
type DocQAService struct {
	indexer       *Indexer
	retriever     *Retriever
	generator     *Generator
	cache         *QueryCache
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	collection    string
	metrics       *metrics.QAMetrics
}

// ServiceConfig 问答服务配置。
type ServiceConfig struct {
	IndexerConfig    *IndexerConfig
	RetrieverConfig  *RetrieverConfig
	GeneratorConfig  *GeneratorConfig
	QueryCacheConfig *QueryCacheConfig
}

// NewDocQAService 创建问答服务实例。
func NewDocQAService(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	cache *QueryCache,
	config *ServiceConfig,
) *DocQAService {
	return &DocQAService{
		indexer:       NewIndexer(vectorStore, embedProvider, config.IndexerConfig),
		retriever:     NewRetriever(vectorStore, embedProvider, config.RetrieverConfig),
		generator:     NewGenerator(chatProvider, config.GeneratorConfig),
		cache:         cache,
		store:         vectorStore,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		collection:    config.IndexerConfig.Collection,
		metrics:       metrics.GetQAMetrics(),
	}
}

// IndexUpload 索引上传的文档内容。
func (s *DocQAService) IndexUpload(ctx context.Context, filename string, r io.Reader) (*model.Document, error) {
	doc, err := s.indexer.IndexUpload(ctx, filename, r)
	if err != nil {
		s.metrics.RecordIndexing(0, 0, err)
		return nil, err
	}
	s.metrics.RecordIndexing(1, doc.ChunkCount, nil)
	return doc, nil
}

// IndexFromURL 从 URL 下载并索引文档。
func (s *DocQAService) IndexFromURL(ctx context.Context, url string) (*model.Document, error) {
	doc, err := s.indexer.IndexFromURL(ctx, url)
	if err != nil {
		s.metrics.RecordIndexing(0, 0, err)
		return nil, err
	}
	s.metrics.RecordIndexing(1, doc.ChunkCount, nil)
	return doc, nil
}

// Query 对知识库执行问答。
func (s *DocQAService) Query(ctx context.Context, question string) (*model.QueryResult, error) {
	var queryErr error
	defer func() {
		// 缓存命中/未命中的成功查询在下面分别记录
		if queryErr != nil {
			s.metrics.RecordQuery(false, queryErr)
		}
	}()

	// 1. 尝试从缓存获取
	if s.cache != nil {
		cachedResult, err := s.cache.Get(ctx, question)
		if err == nil && cachedResult != nil {
			s.metrics.RecordQuery(true, nil)
			return cachedResult, nil
		}
		// 缓存未命中或出错，继续正常流程
	}

	// 2. 检索相关文档
	queryResult, err := s.answerIn(ctx, s.collection, question)
	if err != nil {
		queryErr = err
		return nil, err
	}

	// 3. 写入缓存
	if s.cache != nil {
		// 缓存写入失败不影响正常返回，错误已在 cache.Set 中记录
		_ = s.cache.Set(ctx, question, queryResult)
	}

	s.metrics.RecordQuery(false, nil)
	return queryResult, nil
}

// AnswerDocument 下载单个文档并依次回答一组问题。
func (s *DocQAService) AnswerDocument(ctx context.Context, documentURL string, questions []string) ([]string, error) {
	var runErr error
	defer func() {
		s.metrics.RecordBatchRun(runErr)
	}()

	// 每次请求使用独立的临时集合，同一 URL 的并发请求也不会互相干扰
	collection := fmt.Sprintf("%s_run_%s", s.collection, runNonce())

	doc, err := s.indexer.IndexFromURLInto(ctx, collection, documentURL)
	if err != nil {
		runErr = fmt.Errorf("failed to index document: %w", err)
		return nil, runErr
	}
	s.metrics.RecordIndexing(1, doc.ChunkCount, nil)

	defer func() {
		// 后台清理不用请求的 context，请求此时可能已取消
		dropCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.store.DropCollection(dropCtx, collection); err != nil {
			logger.Warnw("failed to drop temporary collection", "collection", collection, "error", err.Error())
		}
	}()

	logger.Infow("answering questions against document",
		"document", doc.Name,
		"collection", collection,
		"questions", len(questions),
	)

	answers := make([]string, len(questions))
	for i, question := range questions {
		if ctx.Err() != nil {
			runErr = fmt.Errorf("context cancelled after %d of %d questions: %w", i, len(questions), ctx.Err())
			return nil, runErr
		}

		result, err := s.answerIn(ctx, collection, question)
		if err != nil {
			runErr = fmt.Errorf("failed to answer question %d: %w", i+1, err)
			return nil, runErr
		}
		answers[i] = result.Answer
	}

	return answers, nil
}

// answerIn 在指定集合中检索并生成单个问题的答案。
func (s *DocQAService) answerIn(ctx context.Context, collection, question string) (*model.QueryResult, error) {
	retrievalStart := time.Now()
	retrievalResult, err := s.retriever.RetrieveFrom(ctx, collection, question)
	s.metrics.RecordRetrieval(time.Since(retrievalStart), err)
	if err != nil {
		return nil, err
	}

	llmStart := time.Now()
	resp, err := s.generator.GenerateAnswer(ctx, question, retrievalResult.Results)
	llmDuration := time.Since(llmStart)

	promptTokens := 0
	completionTokens := 0
	if resp != nil && resp.TokenUsage != nil {
		promptTokens = resp.TokenUsage.PromptTokens
		completionTokens = resp.TokenUsage.CompletionTokens
	}
	s.metrics.RecordLLMCall(llmDuration, promptTokens, completionTokens, err)

	if err != nil {
		return nil, err
	}

	sources := make([]model.ChunkSource, len(retrievalResult.Results))
	for i, result := range retrievalResult.Results {
		sources[i] = model.ChunkSource{
			DocumentID:   result.DocumentID,
			DocumentName: result.DocumentName,
			Section:      result.Section,
			Page:         result.Page,
			Content:      result.Content,
			Score:        result.Score,
		}
	}

	return &model.QueryResult{
		Answer:  resp.Content,
		Sources: sources,
	}, nil
}

// ClearCache 清除查询缓存。
func (s *DocQAService) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

// GetStats 获取知识库统计信息。
func (s *DocQAService) GetStats(ctx context.Context) (map[string]any, error) {
	count, err := s.store.GetStats(ctx, s.collection)
	if err != nil {
		return nil, err
	}

	stats := map[string]any{
		"collection":     s.collection,
		"chunk_count":    count,
		"embed_provider": s.embedProvider.Name(),
		"chat_provider":  s.chatProvider.Name(),
	}

	// 添加缓存统计信息
	if s.cache != nil {
		cacheStats, err := s.cache.GetStats(ctx)
		if err == nil {
			stats["cache"] = cacheStats
		}
	}

	// 添加业务指标统计
	stats["metrics"] = s.metrics.Stats()

	return stats, nil
}

// runNonce 为批量问答的临时集合生成唯一后缀。
func runNonce() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// 确保 DocQAService 实现了 Service 接口。
var _ Service = (*DocQAService)(nil)
