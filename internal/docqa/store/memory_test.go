package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollection(t *testing.T) (*MemoryStore, string) {
	t.Helper()
	s := NewMemoryStore()
	require.NoError(t, s.CreateCollection(context.Background(), &CollectionConfig{
		Name:      "test_docs",
		Dimension: 3,
	}))
	return s, "test_docs"
}

func TestMemoryStoreInsertAndStats(t *testing.T) {
	s, coll := newTestCollection(t)
	ctx := context.Background()

	ids, err := s.Insert(ctx, coll, []*Chunk{
		{DocumentID: "doc1", DocumentName: "policy.pdf", Content: "第一条", Embedding: []float32{1, 0, 0}},
		{DocumentID: "doc1", DocumentName: "policy.pdf", Content: "第二条", Embedding: []float32{0, 1, 0}},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])

	count, err := s.GetStats(ctx, coll)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMemoryStoreInsertUnknownCollection(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Insert(context.Background(), "missing", []*Chunk{{Embedding: []float32{1}}})
	assert.Error(t, err)
}

func TestMemoryStoreSearchRanking(t *testing.T) {
	s, coll := newTestCollection(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, coll, []*Chunk{
		{DocumentID: "doc1", Content: "无关内容", Embedding: []float32{0, 1, 0}},
		{DocumentID: "doc1", Content: "最相关内容", Page: 3, Embedding: []float32{1, 0, 0}},
		{DocumentID: "doc1", Content: "较相关内容", Embedding: []float32{0.9, 0.1, 0}},
	})
	require.NoError(t, err)

	results, err := s.Search(ctx, coll, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "最相关内容", results[0].Content)
	assert.Equal(t, int64(3), results[0].Page)
	assert.Equal(t, "较相关内容", results[1].Content)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestMemoryStoreSearchTopKLargerThanData(t *testing.T) {
	s, coll := newTestCollection(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, coll, []*Chunk{
		{Content: "only one", Embedding: []float32{1, 0, 0}},
	})
	require.NoError(t, err)

	results, err := s.Search(ctx, coll, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestMemoryStoreDropCollection(t *testing.T) {
	s, coll := newTestCollection(t)
	ctx := context.Background()

	require.NoError(t, s.DropCollection(ctx, coll))

	_, err := s.GetStats(ctx, coll)
	assert.Error(t, err)

	// 删除后重新创建应为空集合
	require.NoError(t, s.CreateCollection(ctx, &CollectionConfig{Name: coll, Dimension: 3}))
	count, err := s.GetStats(ctx, coll)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
