package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/docqa/internal/pkg/textutil"
)

// MemoryStore 基于内存的向量存储，用于测试和无 Milvus 的本地开发。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]*Chunk
	nextID      int64
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储实例。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]*Chunk),
	}
}

// CreateCollection 创建集合，已存在时为空操作。
func (s *MemoryStore) CreateCollection(_ context.Context, config *CollectionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[config.Name]; !ok {
		s.collections[config.Name] = []*Chunk{}
	}
	return nil
}

// Insert 批量插入文档块。
func (s *MemoryStore) Insert(_ context.Context, collection string, chunks []*Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", collection)
	}

	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		s.nextID++
		cp := *chunk
		cp.ID = fmt.Sprintf("%d", s.nextID)
		stored = append(stored, &cp)
		ids[i] = cp.ID
	}
	s.collections[collection] = stored

	return ids, nil
}

// Search 用余弦相似度做暴力检索，返回得分最高的 topK 个块。
func (s *MemoryStore) Search(_ context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", collection)
	}

	results := make([]*SearchResult, 0, len(stored))
	for _, chunk := range stored {
		results = append(results, &SearchResult{
			ID:           chunk.ID,
			DocumentID:   chunk.DocumentID,
			DocumentName: chunk.DocumentName,
			Section:      chunk.Section,
			Page:         chunk.Page,
			Content:      chunk.Content,
			Score:        textutil.CosineSimilarity(embedding, chunk.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// DropCollection 删除集合。
func (s *MemoryStore) DropCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, collection)
	return nil
}

// GetStats 返回集合中的块数量。
func (s *MemoryStore) GetStats(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("collection %q does not exist", collection)
	}
	return int64(len(stored)), nil
}

// Close 关闭存储（内存实现为空操作）。
func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}
