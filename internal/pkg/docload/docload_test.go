package docload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
)

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("policy.pdf"))
	assert.True(t, IsSupported("contract.DOCX"))
	assert.True(t, IsSupported("notes.txt"))
	assert.True(t, IsSupported("readme.md"))
	assert.False(t, IsSupported("legacy.doc"))
	assert.False(t, IsSupported("image.png"))
	assert.False(t, IsSupported("noextension"))
}

func TestLoadText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte("第一段内容。\n\n第二段内容。"), 0o644))

	docs, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].PageContent, "第一段内容")
}

func TestLoadUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.doc")
	require.NoError(t, os.WriteFile(path, []byte("old format"), 0o644))

	_, err := Load(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSplitterChunksWithOverlap(t *testing.T) {
	splitter := NewSplitter(100, 20)

	paragraphs := make([]string, 10)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat("policy term ", 8)
	}
	doc := schema.Document{
		PageContent: strings.Join(paragraphs, "\n\n"),
		Metadata:    map[string]any{"page": 2},
	}

	pieces, err := splitter.SplitDocuments([]schema.Document{doc})
	require.NoError(t, err)
	require.Greater(t, len(pieces), 1)

	for _, p := range pieces {
		assert.LessOrEqual(t, len(p.Content), 100+20)
		assert.Equal(t, int64(2), p.Page)
	}
}

func TestSplitterShortDocumentSingleChunk(t *testing.T) {
	splitter := NewSplitter(1000, 200)

	pieces, err := splitter.SplitDocuments([]schema.Document{
		{PageContent: "short document", Metadata: map[string]any{}},
	})
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Equal(t, "short document", pieces[0].Content)
	assert.Equal(t, int64(0), pieces[0].Page)
}

func TestDownloader(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("downloaded content"))
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir(), 1<<20)
	path, err := d.Download(context.Background(), srv.URL+"/docs/policy.txt")
	require.NoError(t, err)
	defer Cleanup(path)

	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Equal(t, ".txt", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "downloaded content", string(data))
}

func TestDownloaderExtensionFromContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir(), 1<<20)
	path, err := d.Download(context.Background(), srv.URL+"/document")
	require.NoError(t, err)
	defer Cleanup(path)

	assert.Equal(t, ".pdf", filepath.Ext(path))
}

func TestDownloaderRejectsOversized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir(), 1024)
	_, err := d.Download(context.Background(), srv.URL+"/big.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum size")
}

func TestDownloaderNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir(), 1024)
	_, err := d.Download(context.Background(), srv.URL+"/missing.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
