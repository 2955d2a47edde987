package llm

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedProvider 记录调用情况的 Embedding 供应商。
type countingEmbedProvider struct {
	calls     int
	lastBatch []string
	short     bool // 返回的向量数少于请求的文本数
}

func (p *countingEmbedProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls++
	p.lastBatch = append([]string(nil), texts...)
	n := len(texts)
	if p.short && n > 0 {
		n--
	}
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (p *countingEmbedProvider) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	p.calls++
	return []float32{float32(len(text)), 1}, nil
}

func (p *countingEmbedProvider) Name() string { return "counting" }

var _ EmbeddingProvider = (*countingEmbedProvider)(nil)

// 辅助函数：创建测试用 Redis 客户端
func setupTestRedis(t *testing.T) *goredis.Client {
	client := goredis.NewClient(&goredis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis 不可用，跳过测试")
	}

	client.FlushDB(ctx)
	return client
}

func newTestCachedProvider(client *goredis.Client, inner EmbeddingProvider) *CachedEmbeddingProvider {
	return NewCachedEmbeddingProvider(inner, client, &EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       1 * time.Hour,
		KeyPrefix: "test:emb:",
	})
}

func TestCachedEmbedSingle(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	inner := &countingEmbedProvider{}
	cached := newTestCachedProvider(client, inner)
	ctx := context.Background()

	first, err := cached.EmbedSingle(ctx, "保险等待期")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	// 第二次读取来自缓存，不再调用底层供应商
	second, err := cached.EmbedSingle(ctx, "保险等待期")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
}

func TestCachedEmbedBatchPartialHit(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	inner := &countingEmbedProvider{}
	cached := newTestCachedProvider(client, inner)
	ctx := context.Background()

	_, err := cached.Embed(ctx, []string{"第一段", "第二段"})
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	// 新批次只有未命中的文本会发给供应商
	embeddings, err := cached.Embed(ctx, []string{"第一段", "第三段"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, []string{"第三段"}, inner.lastBatch)
}

func TestCachedEmbedShortProviderResponse(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	inner := &countingEmbedProvider{short: true}
	cached := newTestCachedProvider(client, inner)

	// 供应商返回的向量数量不足时必须报错而不是崩溃
	_, err := cached.Embed(context.Background(), []string{"第一段", "第二段"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding count mismatch")
}

func TestCachedEmbedDisabled(t *testing.T) {
	inner := &countingEmbedProvider{}
	cached := NewCachedEmbeddingProvider(inner, nil, &EmbeddingCacheConfig{Enabled: false})
	ctx := context.Background()

	_, err := cached.Embed(ctx, []string{"第一段"})
	require.NoError(t, err)
	_, err = cached.Embed(ctx, []string{"第一段"})
	require.NoError(t, err)
	// 缓存禁用时每次都直接调用供应商
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "counting-cached", cached.Name())
}

func TestCachedEmbedClearCache(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	inner := &countingEmbedProvider{}
	cached := newTestCachedProvider(client, inner)
	ctx := context.Background()

	_, err := cached.EmbedSingle(ctx, "第一段")
	require.NoError(t, err)
	require.NoError(t, cached.ClearCache(ctx))

	// 清空缓存后重新计算
	_, err = cached.EmbedSingle(ctx, "第一段")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}
