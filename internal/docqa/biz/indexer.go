package biz

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/docload"
	"github.com/kart-io/docqa/internal/pkg/textutil"
	"github.com/kart-io/docqa/pkg/llm"
)

// embedBatchSize 每次嵌入请求的最大文本数。
const embedBatchSize = 64

// minChunkLength 低于该长度的文本块会被丢弃。
const minChunkLength = 20

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// ChunkSize 文本块大小。
	ChunkSize int
	// ChunkOverlap 块重叠大小。
	ChunkOverlap int
	// Collection 默认集合名称。
	Collection string
	// EmbeddingDim 嵌入向量维度。
	EmbeddingDim int
	// DataDir 数据存储目录。
	DataDir string
	// MaxUploadSize 单个文档的最大字节数。
	MaxUploadSize int64
}

// Indexer 负责文档索引。
type Indexer struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	splitter      *docload.Splitter
	downloader    *docload.Downloader
	config        *IndexerConfig
}

// NewIndexer 创建索引器实例。
func NewIndexer(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, config *IndexerConfig) *Indexer {
	return &Indexer{
		store:         vectorStore,
		embedProvider: embedProvider,
		splitter:      docload.NewSplitter(config.ChunkSize, config.ChunkOverlap),
		downloader:    docload.NewDownloader(config.DataDir, config.MaxUploadSize),
		config:        config,
	}
}

// IndexUpload 索引上传的文档内容。
func (i *Indexer) IndexUpload(ctx context.Context, filename string, r io.Reader) (*model.Document, error) {
	if !docload.IsSupported(filename) {
		return nil, fmt.Errorf("%w: %s (supported: %s)",
			docload.ErrUnsupportedFormat, filename, strings.Join(docload.SupportedExtensions(), ", "))
	}

	if err := docload.EnsureDir(i.config.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// 先落盘，解析器需要可随机访问的文件
	tmpFile, err := os.CreateTemp(i.config.DataDir, "upload-*"+filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmpFile.Name()
	defer docload.Cleanup(path)

	written, err := io.Copy(tmpFile, io.LimitReader(r, i.config.MaxUploadSize+1))
	if closeErr := tmpFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}
	if written > i.config.MaxUploadSize {
		return nil, fmt.Errorf("document exceeds maximum size of %d bytes", i.config.MaxUploadSize)
	}

	logger.Infow("received document upload", "filename", filename, "size", written)

	doc, err := i.IndexFileInto(ctx, i.config.Collection, path, filepath.Base(filename), filename)
	if err != nil {
		return nil, err
	}
	doc.SizeBytes = written
	return doc, nil
}

// IndexFromURL 从 URL 下载并索引文档到默认集合。
func (i *Indexer) IndexFromURL(ctx context.Context, url string) (*model.Document, error) {
	return i.IndexFromURLInto(ctx, i.config.Collection, url)
}

// IndexFromURLInto 从 URL 下载并索引文档到指定集合。
func (i *Indexer) IndexFromURLInto(ctx context.Context, collection, url string) (*model.Document, error) {
	logger.Infof("Downloading document from: %s", url)

	path, err := i.downloader.Download(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to download document: %w", err)
	}
	defer docload.Cleanup(path)
	logger.Info("Download completed")

	return i.IndexFileInto(ctx, collection, path, documentNameFromURL(url), url)
}

// IndexFileInto 解析本地文件并将其分块索引到指定集合。
// source 用于生成稳定的文档 ID（上传时为文件名，下载时为 URL）。
func (i *Indexer) IndexFileInto(ctx context.Context, collection, path, docName, source string) (*model.Document, error) {
	collectionConfig := &store.CollectionConfig{
		Name:        collection,
		Description: "document QA knowledge base collection",
		Dimension:   i.config.EmbeddingDim,
	}
	if err := i.store.CreateCollection(ctx, collectionConfig); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	docs, err := docload.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	pieces, err := i.splitter.SplitDocuments(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to split document: %w", err)
	}

	docID := textutil.HashString(source)
	chunks := make([]*store.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		if len(strings.TrimSpace(piece.Content)) < minChunkLength {
			continue
		}
		chunks = append(chunks, &store.Chunk{
			DocumentID:   docID,
			DocumentName: textutil.TruncateString(docName, 250),
			Section:      textutil.TruncateString(sectionLabel(docName, piece.Page), 250),
			Page:         piece.Page,
			Content:      textutil.TruncateString(piece.Content, 65000),
		})
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s produced no indexable content", docName)
	}

	if err := i.embedChunks(ctx, chunks); err != nil {
		return nil, err
	}

	if _, err := i.store.Insert(ctx, collection, chunks); err != nil {
		return nil, fmt.Errorf("failed to insert chunks: %w", err)
	}

	logger.Infow("document indexed",
		"document", docName,
		"collection", collection,
		"chunks", len(chunks),
	)

	return &model.Document{
		ID:         docID,
		Name:       docName,
		Source:     source,
		ChunkCount: len(chunks),
	}, nil
}

// embedChunks 分批生成嵌入向量并写回块。
func (i *Indexer) embedChunks(ctx context.Context, chunks []*store.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for idx, chunk := range batch {
			texts[idx] = chunk.Content
		}

		embeddings, err := i.embedProvider.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), len(batch))
		}

		for idx, chunk := range batch {
			chunk.Embedding = embeddings[idx]
		}
	}
	return nil
}

// sectionLabel 为文档块生成来源标注。
func sectionLabel(docName string, page int64) string {
	if page > 0 {
		return fmt.Sprintf("page %d", page)
	}
	return strings.TrimSuffix(docName, filepath.Ext(docName))
}

// documentNameFromURL 从 URL 中提取文档名（去掉查询参数）。
func documentNameFromURL(url string) string {
	name := url
	if idx := strings.IndexAny(name, "?#"); idx >= 0 {
		name = name[:idx]
	}
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}
