package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/outfitter/backend/internal/domain"
	"github.com/outfitter/backend/internal/logger"
)

const (
	serviceName    = "outfitter-backend"
	serviceVersion = "1.0.0"
)

// SearchService runs the outfit search pipeline
type SearchService interface {
	Search(ctx context.Context, sc *domain.SearchContext, mode domain.Mode) (*domain.SearchResult, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	search SearchService
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(search SearchService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{search: search, logger: log.Named("http")}
}

// SearchRequest is the body of POST /api/v1/search
type SearchRequest struct {
	domain.SearchContext
	Mode string `json:"mode"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// Search handles outfit search requests
func (h *Handler) Search(c *gin.Context) {
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search service not configured"})
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be 'full' or 'simplified'"})
		return
	}

	result, err := h.search.Search(c.Request.Context(), &req.SearchContext, mode)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			logger.FromContextOr(c.Request.Context(), h.logger).Error("search failed", zap.Error(err))
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// statusForError maps domain errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCacheUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
