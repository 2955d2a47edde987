package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "test-key"
	cfg.MaxRetries = 1
	return NewProviderWithConfig(cfg)
}

func TestNewProviderRequiresAPIKey(t *testing.T) {
	_, err := NewProvider(map[string]any{})
	assert.Error(t, err)

	p, err := NewProvider(map[string]any{"api_key": "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())
}

func TestEmbed(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "batchEmbedContents")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 2)
		assert.Equal(t, "models/embedding-001", req.Requests[0].Model)

		resp := map[string]any{
			"embeddings": []map[string]any{
				{"values": []float32{0.1, 0.2}},
				{"values": []float32{0.3, 0.4}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	embeddings, err := provider.Embed(context.Background(), []string{"第一段", "第二段"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2}, embeddings[0])
	assert.Equal(t, []float32{0.3, 0.4}, embeddings[1])
}

func TestEmbedShortResponse(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		// 返回的向量数量少于请求的文本数量
		resp := map[string]any{
			"embeddings": []map[string]any{
				{"values": []float32{0.1, 0.2}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	_, err := provider.Embed(context.Background(), []string{"第一段", "第二段"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding count mismatch")
}

func TestEmbedEmptyInput(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	})

	embeddings, err := provider.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}

func TestGenerate(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "generateContent")

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "user", req.Contents[0].Role)
		assert.InDelta(t, 0.1, req.GenerationConfig.Temperature, 1e-9)

		resp := map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"parts": []map[string]any{{"text": "答案内容"}},
						"role":  "model",
					},
					"finishReason": "STOP",
				},
			},
			"usageMetadata": map[string]any{
				"promptTokenCount":     10,
				"candidatesTokenCount": 4,
				"totalTokenCount":      14,
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	resp, err := provider.Generate(context.Background(), "question", "system prompt")
	require.NoError(t, err)
	assert.Equal(t, "答案内容", resp.Content)
	require.NotNil(t, resp.TokenUsage)
	assert.Equal(t, 10, resp.TokenUsage.PromptTokens)
	assert.Equal(t, 4, resp.TokenUsage.CompletionTokens)
	assert.Equal(t, 14, resp.TokenUsage.TotalTokens)
}

func TestChatRoleMapping(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 2)
		// assistant 角色应映射为 Gemini 的 "model"
		assert.Equal(t, "model", req.Contents[1].Role)

		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "ok"}}}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	out, err := provider.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestGenerateClientErrorNotRetried(t *testing.T) {
	calls := 0
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	})

	_, err := provider.Generate(context.Background(), "q", "")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "400"))
	assert.Equal(t, 1, calls)
}

func TestRetryOnServerError(t *testing.T) {
	calls := 0
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "oops", http.StatusInternalServerError)
			return
		}
		resp := map[string]any{
			"embeddings": []map[string]any{{"values": []float32{0.5}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	start := time.Now()
	embedding, err := provider.EmbedSingle(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, embedding)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}
