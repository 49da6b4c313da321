package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/aggregator"
	"github.com/temcen/vocabimg/pkg/models"
)

type Searcher interface {
	SearchAllSources(ctx context.Context, query, category string, opts aggregator.Options) *aggregator.AggregatedResult
	EnhancedSearchAllSources(ctx context.Context, itemName, category string, opts aggregator.Options) *aggregator.AggregatedResult
}

// SearchHandler previews an aggregated search without persisting anything.
type SearchHandler struct {
	searcher  Searcher
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewSearchHandler(searcher Searcher, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		searcher:  searcher,
		validator: validator.New(),
		logger:    logger,
	}
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format", err.Error())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", "Search request validation failed", err.Error())
		return
	}

	opts := aggregator.Options{
		MaxResultsPerSource: req.MaxResultsPerSource,
		MaxTotalResults:     req.MaxTotalResults,
		ExcludeSources:      req.ExcludeSources,
		PrioritySources:     req.PrioritySources,
		Timeout:             time.Duration(req.TimeoutSeconds) * time.Second,
	}

	var result *aggregator.AggregatedResult
	if req.Enhanced {
		result = h.searcher.EnhancedSearchAllSources(c.Request.Context(), req.Query, req.Category, opts)
	} else {
		result = h.searcher.SearchAllSources(c.Request.Context(), req.Query, req.Category, opts)
	}

	if result.NoSourcesAvailable {
		respondError(c, http.StatusServiceUnavailable, "NO_SOURCES_AVAILABLE", "No image sources are available", result)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"query":        req.Query,
		"mode":         result.Mode,
		"total_images": result.TotalImages,
		"failed":       len(result.FailedSources),
	}).Debug("Search preview served")

	c.JSON(http.StatusOK, result)
}
