// Package handler provides HTTP handlers for the DocMind service.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docmind/internal/docmind/biz"
	"github.com/kart-io/docmind/internal/docmind/metrics"
)

// queryTimeout 单次问答的最长处理时间。
const queryTimeout = 60 * time.Second

// Handler handles DocMind HTTP requests.
type Handler struct {
	service biz.Service
}

// NewHandler creates a new Handler.
func NewHandler(service biz.Service) *Handler {
	return &Handler{service: service}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// IngestRequest represents an ingestion request. Exactly one of Paths or
// Directory must be set.
type IngestRequest struct {
	Paths     []string `json:"paths"`
	Directory string   `json:"directory"`
}

// Ingest indexes documents from explicit paths or a directory.
func (h *Handler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}
	if (len(req.Paths) == 0) == (req.Directory == "") {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "exactly one of paths or directory must be provided"})
		return
	}

	var (
		summary *biz.IndexingSummary
		err     error
	)
	if req.Directory != "" {
		summary, err = h.service.IndexDirectory(c.Request.Context(), req.Directory)
	} else {
		summary, err = h.service.IndexDocuments(c.Request.Context(), req.Paths)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: summary})
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
	// TopK 覆盖默认检索数量，0 表示使用默认。
	TopK int `json:"top_k"`
	// Filters 元数据等值过滤条件。
	Filters map[string]string `json:"filters"`
	// SkipRerank 跳过重排，按相似度原始顺序返回。
	SkipRerank bool `json:"skip_rerank"`
}

// Query performs a citation-grounded question answering query.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "question cannot be empty"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	result, err := h.service.Query(ctx, req.Question, &biz.QueryOptions{
		TopK:       req.TopK,
		Filters:    req.Filters,
		SkipRerank: req.SkipRerank,
	})
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

// DeleteDocument removes all stored chunks of the named document.
func (h *Handler) DeleteDocument(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "document name is required"})
		return
	}

	deleted, err := h.service.DeleteDocument(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    0,
		Message: "success",
		Data:    gin.H{"file_name": name, "chunks_deleted": deleted},
	})
}

// Stats returns knowledge base statistics.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: stats})
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics exposes Prometheus text-format metrics.
func (h *Handler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8",
		[]byte(metrics.GetRAGMetrics().Export("docmind", "rag")))
}

