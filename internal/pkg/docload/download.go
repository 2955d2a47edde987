// Package docload 负责文档的下载、解析和分块。
//
// 支持 PDF、DOCX 和纯文本三种格式，解析结果统一为 langchaingo 的
// schema.Document，供索引器分块和嵌入。
package docload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/kart-io/logger"
)

// browserUserAgent 部分文档站点会拒绝非浏览器 UA 的请求。
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// defaultDownloadTimeout 单次下载的超时时间。
const defaultDownloadTimeout = 30 * time.Second

// Downloader 从 URL 下载文档到本地临时文件。
type Downloader struct {
	client  *http.Client
	dataDir string
	maxSize int64
}

// NewDownloader 创建下载器。maxSize 限制下载内容大小（字节）。
func NewDownloader(dataDir string, maxSize int64) *Downloader {
	return &Downloader{
		client:  &http.Client{Timeout: defaultDownloadTimeout},
		dataDir: dataDir,
		maxSize: maxSize,
	}
}

// Download 下载 URL 指向的文档，返回本地文件路径。
// 调用方负责在处理完成后删除该文件。
func (d *Downloader) Download(ctx context.Context, rawURL string) (string, error) {
	if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid document url: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download document: status %d", resp.StatusCode)
	}

	ext := inferExtension(rawURL, resp.Header.Get("Content-Type"))

	tmp, err := os.CreateTemp(d.dataDir, "download-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(tmp, io.LimitReader(resp.Body, d.maxSize+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save document: %w", err)
	}
	if written > d.maxSize {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("document exceeds maximum size of %d bytes", d.maxSize)
	}

	logger.Infow("document downloaded", "url", rawURL, "path", tmp.Name(), "bytes", written)
	return tmp.Name(), nil
}

// inferExtension 从 URL 路径推断文件扩展名，失败时回退到 Content-Type。
func inferExtension(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" {
			return ext
		}
	}

	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			switch mediaType {
			case "application/pdf":
				return ".pdf"
			case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
				return ".docx"
			case "text/plain":
				return ".txt"
			}
		}
	}

	// 未知类型按 PDF 处理，这是线上最常见的文档格式
	return ".pdf"
}

// Cleanup 删除下载的临时文件，失败仅记录日志。
func Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnw("failed to remove temp document", "path", path, "error", err.Error())
	}
}

// EnsureDir 确保目录存在。
func EnsureDir(dir string) error {
	return os.MkdirAll(filepath.Clean(dir), 0o755)
}
