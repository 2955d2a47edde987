package biz

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/model"
)

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

func newTestQueryCache(client *goredis.Client) *QueryCache {
	return NewQueryCache(client, &QueryCacheConfig{
		Enabled:   true,
		TTL:       1 * time.Hour,
		KeyPrefix: "test:docqa:query:",
	})
}

func TestNewQueryCacheWithNilConfig(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := NewQueryCache(client, nil)
	require.NotNil(t, cache)
	require.NotNil(t, cache.config)
	assert.False(t, cache.config.Enabled) // 默认禁用
	assert.Equal(t, "docqa:query:", cache.config.KeyPrefix)
}

func TestQueryCacheGenerateCacheKey(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := newTestQueryCache(client)

	key1 := cache.generateCacheKey("What is the grace period?")
	key2 := cache.generateCacheKey("What is the grace period?")
	key3 := cache.generateCacheKey("Is knee surgery covered?")

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
	assert.Contains(t, key1, "test:docqa:query:")
}

func TestQueryCacheSetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := newTestQueryCache(client)
	ctx := context.Background()

	question := "What is the waiting period for knee surgery?"
	result := &model.QueryResult{
		Answer: "The waiting period is two years.",
		Sources: []model.ChunkSource{
			{
				DocumentID:   "doc1",
				DocumentName: "policy.pdf",
				Section:      "page 4",
				Page:         4,
				Content:      "Knee surgery is covered after two years...",
				Score:        0.95,
			},
		},
	}

	require.NoError(t, cache.Set(ctx, question, result))

	cached, err := cache.Get(ctx, question)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, result.Answer, cached.Answer)
	require.Len(t, cached.Sources, 1)
	assert.Equal(t, result.Sources[0].DocumentID, cached.Sources[0].DocumentID)
	assert.Equal(t, result.Sources[0].Page, cached.Sources[0].Page)
}

func TestQueryCacheGetMiss(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := newTestQueryCache(client)

	result, err := cache.Get(context.Background(), "不存在的问题")
	require.NoError(t, err)
	assert.Nil(t, result) // 缓存未命中应返回 nil
}

func TestQueryCacheCorruptEntry(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := newTestQueryCache(client)
	ctx := context.Background()

	question := "损坏的缓存项"
	key := cache.generateCacheKey(question)
	require.NoError(t, client.Set(ctx, key, "not-json{", time.Hour).Err())

	// 损坏的缓存返回错误并被删除，下次读取回到未命中路径
	_, err := cache.Get(ctx, question)
	require.Error(t, err)

	result, err := cache.Get(ctx, question)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestQueryCacheDisabled(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := NewQueryCache(client, &QueryCacheConfig{
		Enabled:   false,
		TTL:       1 * time.Hour,
		KeyPrefix: "test:docqa:query:",
	})
	ctx := context.Background()

	// 禁用缓存时，Set 不报错但不写入
	require.NoError(t, cache.Set(ctx, "测试问题", &model.QueryResult{Answer: "测试答案"}))

	cached, err := cache.Get(ctx, "测试问题")
	assert.Error(t, err)
	assert.Nil(t, cached)
}

func TestQueryCacheClear(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := newTestQueryCache(client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		question := "问题" + string(rune('A'+i))
		require.NoError(t, cache.Set(ctx, question, &model.QueryResult{Answer: "答案"}))
	}

	require.NoError(t, cache.Clear(ctx))

	for i := 0; i < 5; i++ {
		question := "问题" + string(rune('A'+i))
		cached, err := cache.Get(ctx, question)
		require.NoError(t, err)
		assert.Nil(t, cached)
	}
}

func TestQueryCacheGetStats(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := newTestQueryCache(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		question := "测试问题" + string(rune('1'+i))
		require.NoError(t, cache.Set(ctx, question, &model.QueryResult{Answer: "测试答案"}))
	}

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats["enabled"].(bool))
	assert.Equal(t, 3, stats["key_count"].(int))
	assert.Equal(t, "test:docqa:query:", stats["key_prefix"].(string))
}

func TestQueryCacheNilRedis(t *testing.T) {
	cache := NewQueryCache(nil, &QueryCacheConfig{
		Enabled:   true,
		TTL:       1 * time.Hour,
		KeyPrefix: "test:docqa:query:",
	})
	ctx := context.Background()

	// Redis 为 nil 时读取报错，写入和清理优雅降级
	_, err := cache.Get(ctx, "问题")
	assert.Error(t, err)
	assert.NoError(t, cache.Set(ctx, "问题", &model.QueryResult{Answer: "答案"}))
	assert.NoError(t, cache.Clear(ctx))

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.False(t, stats["enabled"].(bool))
}
