package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerOptionsDefaults(t *testing.T) {
	opts := NewServerOptions()

	assert.Equal(t, ":8083", opts.HTTPOptions.Addr)
	assert.Equal(t, "milvus", opts.StoreBackend)
	assert.Equal(t, "gemini", opts.EmbeddingOptions.Provider)
	assert.Equal(t, "embedding-001", opts.EmbeddingOptions.Model)
	assert.Equal(t, "gemini-1.5-flash", opts.ChatOptions.Model)
	assert.Equal(t, 1000, opts.RAGOptions.ChunkSize)
	assert.Equal(t, 200, opts.RAGOptions.ChunkOverlap)
	assert.Equal(t, 3, opts.RAGOptions.TopK)
}

func TestValidate(t *testing.T) {
	opts := NewServerOptions()
	opts.EmbeddingOptions.APIKey = "test-key"
	opts.ChatOptions.APIKey = "test-key"
	require.NoError(t, opts.Complete())

	assert.NoError(t, opts.Validate())
}

func TestValidateMissingAPIKey(t *testing.T) {
	opts := NewServerOptions()
	require.NoError(t, opts.Complete())

	err := opts.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api-key")
}

func TestValidateBadStoreBackend(t *testing.T) {
	opts := NewServerOptions()
	opts.EmbeddingOptions.APIKey = "test-key"
	opts.ChatOptions.APIKey = "test-key"
	opts.StoreBackend = "postgres"

	err := opts.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store-backend")
}

func TestValidateChunkOverlap(t *testing.T) {
	opts := NewServerOptions()
	opts.EmbeddingOptions.APIKey = "test-key"
	opts.ChatOptions.APIKey = "test-key"
	opts.RAGOptions.ChunkOverlap = opts.RAGOptions.ChunkSize

	err := opts.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk-overlap")
}

func TestFlagsGrouped(t *testing.T) {
	opts := NewServerOptions()
	fss := opts.Flags()

	for _, name := range []string{"http", "log", "milvus", "embedding", "chat", "rag", "cache", "misc"} {
		fs := fss.FlagSets[name]
		require.NotNil(t, fs, "flag set %s missing", name)
	}

	assert.NotNil(t, fss.FlagSets["embedding"].Lookup("embedding.provider"))
	assert.NotNil(t, fss.FlagSets["chat"].Lookup("chat.model"))
	assert.NotNil(t, fss.FlagSets["milvus"].Lookup("milvus.address"))
	assert.NotNil(t, fss.FlagSets["http"].Lookup("http.auth-token"))
}
