package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetQAMetricsSingleton(t *testing.T) {
	m1 := GetQAMetrics()
	m2 := GetQAMetrics()
	assert.Same(t, m1, m2)
}

func TestRecordQuery(t *testing.T) {
	m := GetQAMetrics()
	m.Reset()

	m.RecordQuery(true, nil)
	m.RecordQuery(false, nil)
	m.RecordQuery(false, nil)
	m.RecordQuery(false, errors.New("boom"))

	stats := m.Stats()
	queries := stats["queries"].(map[string]interface{})
	assert.Equal(t, uint64(4), queries["total"])
	assert.Equal(t, uint64(1), queries["cache_hits"])
	assert.Equal(t, uint64(2), queries["cache_misses"])
	assert.Equal(t, uint64(1), queries["errors"])
	assert.InDelta(t, 1.0/3.0, queries["cache_hit_rate"], 0.001)
}

func TestRecordRetrievalAndLLM(t *testing.T) {
	m := GetQAMetrics()
	m.Reset()

	m.RecordRetrieval(100*time.Millisecond, nil)
	m.RecordRetrieval(300*time.Millisecond, nil)
	m.RecordRetrieval(0, errors.New("timeout"))

	m.RecordLLMCall(time.Second, 100, 50, nil)
	m.RecordLLMCall(0, 0, 0, errors.New("boom"))

	stats := m.Stats()
	retrieval := stats["retrieval"].(map[string]interface{})
	assert.Equal(t, uint64(3), retrieval["total"])
	assert.Equal(t, uint64(1), retrieval["errors"])
	assert.InDelta(t, 0.4, retrieval["total_duration_secs"], 0.001)

	llm := stats["llm"].(map[string]interface{})
	assert.Equal(t, uint64(2), llm["calls_total"])
	assert.Equal(t, uint64(1), llm["errors"])
	assert.Equal(t, uint64(100), llm["tokens_prompt"])
	assert.Equal(t, uint64(50), llm["tokens_completion"])
}

func TestRecordIndexing(t *testing.T) {
	m := GetQAMetrics()
	m.Reset()

	m.RecordIndexing(1, 12, nil)
	m.RecordIndexing(2, 30, nil)
	m.RecordIndexing(0, 0, errors.New("bad file"))

	stats := m.Stats()
	indexing := stats["indexing"].(map[string]interface{})
	assert.Equal(t, uint64(3), indexing["documents_indexed"])
	assert.Equal(t, uint64(42), indexing["chunks_indexed"])
	assert.Equal(t, uint64(1), indexing["errors"])
}

func TestExport(t *testing.T) {
	m := GetQAMetrics()
	m.Reset()

	m.RecordQuery(false, nil)
	m.RecordBatchRun(nil)

	out := m.Export("docqa", "rag")
	require.NotEmpty(t, out)
	assert.Contains(t, out, "docqa_rag_queries_total 1")
	assert.Contains(t, out, "docqa_rag_batch_runs_total 1")
	assert.Contains(t, out, "# TYPE docqa_rag_queries_total counter")
	assert.True(t, strings.Contains(out, "docqa_rag_uptime_seconds"))
}
