// Package handler provides HTTP handlers for the document QA service.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/pkg/docload"
)

// queryTimeout bounds a single question end to end (retrieval + generation).
const queryTimeout = 60 * time.Second

// DocQAHandler handles document QA HTTP requests.
type DocQAHandler struct {
	service biz.Service
}

// NewDocQAHandler creates a new DocQAHandler.
func NewDocQAHandler(service biz.Service) *DocQAHandler {
	return &DocQAHandler{service: service}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Upload indexes a document from a multipart form upload.
func (h *DocQAHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "missing file field: " + err.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}
	defer file.Close()

	doc, err := h.service.IndexUpload(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		if errors.Is(err, docload.ErrUnsupportedFormat) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "Document indexed successfully", Data: doc})
}

// IndexFromURLRequest represents an index from URL request.
type IndexFromURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// IndexFromURL downloads and indexes a document from a URL.
func (h *DocQAHandler) IndexFromURL(c *gin.Context) {
	var req IndexFromURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	doc, err := h.service.IndexFromURL(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, docload.ErrUnsupportedFormat) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "Document indexed successfully", Data: doc})
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
}

// Query answers a question against the knowledge base.
func (h *DocQAHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	result, err := h.service.Query(ctx, req.Question)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.JSON(http.StatusRequestTimeout, ErrorResponse{
				Code:    408,
				Message: "Query timeout: the request took too long to process. Please try again or simplify your question.",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: result})
}

// RunRequest represents a batch document QA request.
type RunRequest struct {
	Documents []string `json:"documents" binding:"required,min=1"`
	Questions []string `json:"questions" binding:"required,min=1"`
}

// RunResponse represents a batch document QA response.
type RunResponse struct {
	Answers []string `json:"answers"`
}

// Run downloads a document and answers each question against it.
// Only the first document URL is processed.
func (h *DocQAHandler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	answers, err := h.service.AnswerDocument(c.Request.Context(), req.Documents[0], req.Questions)
	if err != nil {
		if errors.Is(err, docload.ErrUnsupportedFormat) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, RunResponse{Answers: answers})
}

// Stats returns knowledge base statistics.
func (h *DocQAHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: stats})
}

// ClearCache clears the query cache.
func (h *DocQAHandler) ClearCache(c *gin.Context) {
	if err := h.service.ClearCache(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "Cache cleared"})
}

// Health reports service liveness.
func (h *DocQAHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics exposes Prometheus-format metrics.
func (h *DocQAHandler) Metrics(c *gin.Context) {
	c.String(http.StatusOK, metrics.GetQAMetrics().Export("docqa", ""))
}
