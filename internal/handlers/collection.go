package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/collection"
	"github.com/temcen/vocabimg/pkg/models"
)

type Collector interface {
	CollectItem(ctx context.Context, item models.CollectionItem, strategy models.CollectionStrategy, force bool) (*collection.ItemResult, error)
	CollectCategory(ctx context.Context, categoryID string, items []models.CollectionItem, strategy models.CollectionStrategy, force bool) *collection.BulkSummary
}

// CollectionReader is the read side of the persistence collaborator.
type CollectionReader interface {
	GetProgress(ctx context.Context, itemID string) (*models.CollectionProgress, error)
	ListProgress(ctx context.Context, categoryID string) ([]models.CollectionProgress, error)
	ListImages(ctx context.Context, itemID string) ([]models.StoredImage, error)
}

type CollectionHandler struct {
	collector  Collector
	reader     CollectionReader
	strategies collection.StrategyProvider
	validator  *validator.Validate
	logger     *logrus.Logger
}

func NewCollectionHandler(
	collector Collector,
	reader CollectionReader,
	strategies collection.StrategyProvider,
	logger *logrus.Logger,
) *CollectionHandler {
	return &CollectionHandler{
		collector:  collector,
		reader:     reader,
		strategies: strategies,
		validator:  validator.New(),
		logger:     logger,
	}
}

func (h *CollectionHandler) CollectItem(c *gin.Context) {
	var req models.CollectItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format", err.Error())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", "Collection request validation failed", err.Error())
		return
	}

	strategy := h.strategies.Strategy(req.Item.CategoryID)
	result, err := h.collector.CollectItem(c.Request.Context(), req.Item, strategy, req.ForceRestart)
	if err != nil {
		h.logger.WithError(err).WithField("item_id", req.Item.ItemID).Error("Item collection failed")
		details := gin.H{"item_id": req.Item.ItemID, "reason": err.Error()}
		var oe *collection.OrchestrationError
		if errors.As(err, &oe) {
			details["stage"] = oe.Stage
		}
		respondError(c, http.StatusInternalServerError, "COLLECTION_FAILED", "Failed to collect images for item", details)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *CollectionHandler) CollectCategory(c *gin.Context) {
	categoryID := c.Param("categoryId")

	var req models.CollectCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format", err.Error())
		return
	}
	for i := range req.Items {
		if req.Items[i].CategoryID == "" {
			req.Items[i].CategoryID = categoryID
		}
		if req.Items[i].CategoryID != categoryID {
			respondError(c, http.StatusBadRequest, "CATEGORY_MISMATCH", "Every item must belong to the category in the path", gin.H{
				"item_id":     req.Items[i].ItemID,
				"category_id": req.Items[i].CategoryID,
			})
			return
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", "Category request validation failed", err.Error())
		return
	}

	summary := h.collector.CollectCategory(c.Request.Context(), categoryID, req.Items, h.strategies.Strategy(categoryID), req.ForceRestart)

	h.logger.WithFields(logrus.Fields{
		"category_id": categoryID,
		"processed":   summary.Processed,
		"successful":  summary.Successful,
		"failed":      summary.Failed,
		"skipped":     summary.Skipped,
	}).Info("Category collection finished")

	c.JSON(http.StatusOK, summary)
}

func (h *CollectionHandler) GetItem(c *gin.Context) {
	itemID := c.Param("itemId")

	progress, err := h.reader.GetProgress(c.Request.Context(), itemID)
	if errors.Is(err, collection.ErrNotFound) {
		respondError(c, http.StatusNotFound, "ITEM_NOT_FOUND", "No collection progress for item", gin.H{"item_id": itemID})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("item_id", itemID).Error("Failed to load progress")
		respondError(c, http.StatusInternalServerError, "PROGRESS_LOOKUP_FAILED", "Failed to load collection progress", nil)
		return
	}

	images, err := h.reader.ListImages(c.Request.Context(), itemID)
	if err != nil {
		h.logger.WithError(err).WithField("item_id", itemID).Error("Failed to list images")
		respondError(c, http.StatusInternalServerError, "IMAGE_LOOKUP_FAILED", "Failed to load stored images", nil)
		return
	}
	if images == nil {
		images = []models.StoredImage{}
	}

	c.JSON(http.StatusOK, gin.H{
		"progress": progress,
		"images":   images,
	})
}

func (h *CollectionHandler) GetCategory(c *gin.Context) {
	categoryID := c.Param("categoryId")

	items, err := h.reader.ListProgress(c.Request.Context(), categoryID)
	if err != nil {
		h.logger.WithError(err).WithField("category_id", categoryID).Error("Failed to list progress")
		respondError(c, http.StatusInternalServerError, "PROGRESS_LOOKUP_FAILED", "Failed to load collection progress", nil)
		return
	}
	if items == nil {
		items = []models.CollectionProgress{}
	}

	byStatus := map[models.ProgressStatus]int{}
	approved := 0
	for _, p := range items {
		byStatus[p.Status]++
		approved += p.ApprovedCount
	}

	c.JSON(http.StatusOK, gin.H{
		"category_id":    categoryID,
		"items":          items,
		"total":          len(items),
		"by_status":      byStatus,
		"approved_total": approved,
	})
}
