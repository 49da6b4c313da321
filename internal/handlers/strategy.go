package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/validation"
	"github.com/temcen/vocabimg/pkg/models"
)

const maxStrategyDocument = 64 << 10

type StrategyStore interface {
	Strategy(categoryID string) models.CollectionStrategy
	Lookup(categoryID string) (models.CollectionStrategy, bool)
	Put(data []byte) (models.CollectionStrategy, *validation.ValidationResult)
}

type StrategyHandler struct {
	store  StrategyStore
	logger *logrus.Logger
}

func NewStrategyHandler(store StrategyStore, logger *logrus.Logger) *StrategyHandler {
	return &StrategyHandler{store: store, logger: logger}
}

// Get returns the effective strategy of a category and whether a document
// overrides the collection defaults.
func (h *StrategyHandler) Get(c *gin.Context) {
	categoryID := c.Param("categoryId")
	_, stored := h.store.Lookup(categoryID)

	c.JSON(http.StatusOK, gin.H{
		"strategy": h.store.Strategy(categoryID),
		"stored":   stored,
	})
}

// Put replaces the strategy document of a category. Documents are held in
// memory; the strategies directory is the durable source.
func (h *StrategyHandler) Put(c *gin.Context) {
	categoryID := c.Param("categoryId")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxStrategyDocument+1))
	if err != nil {
		respondError(c, http.StatusBadRequest, "BODY_READ_ERROR", "Failed to read request body", err.Error())
		return
	}
	if len(body) == 0 {
		respondError(c, http.StatusBadRequest, "EMPTY_BODY", "Request body is required", nil)
		return
	}
	if len(body) > maxStrategyDocument {
		respondError(c, http.StatusRequestEntityTooLarge, "DOCUMENT_TOO_LARGE", "Strategy document is too large", gin.H{"max_bytes": maxStrategyDocument})
		return
	}

	var head struct {
		CategoryID string `json:"category_id"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", err.Error())
		return
	}
	if head.CategoryID != "" && head.CategoryID != categoryID {
		respondError(c, http.StatusBadRequest, "CATEGORY_MISMATCH", "category_id does not match the path", gin.H{
			"path":     categoryID,
			"document": head.CategoryID,
		})
		return
	}

	if _, result := h.store.Put(body); result != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", "Strategy document failed schema validation", result.FieldErrors())
		return
	}

	h.logger.WithField("category_id", categoryID).Info("Strategy document replaced")
	c.JSON(http.StatusOK, gin.H{
		"strategy": h.store.Strategy(categoryID),
		"stored":   true,
	})
}
