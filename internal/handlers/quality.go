package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/collection"
	"github.com/temcen/vocabimg/internal/imaging"
	"github.com/temcen/vocabimg/internal/quality"
	"github.com/temcen/vocabimg/pkg/models"
)

type BytesAssessor interface {
	AssessBytes(data []byte, description string, ctx quality.Context) models.QualityScore
}

type ImageFetcher interface {
	FetchURL(ctx context.Context, rawURL string) ([]byte, error)
}

// QualityHandler scores a single image by URL or multipart upload.
type QualityHandler struct {
	assessor   BytesAssessor
	fetcher    ImageFetcher
	strategies collection.StrategyProvider
	maxUpload  int64
	validator  *validator.Validate
	logger     *logrus.Logger
}

func NewQualityHandler(
	assessor BytesAssessor,
	fetcher ImageFetcher,
	strategies collection.StrategyProvider,
	maxUpload int64,
	logger *logrus.Logger,
) *QualityHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &QualityHandler{
		assessor:   assessor,
		fetcher:    fetcher,
		strategies: strategies,
		maxUpload:  maxUpload,
		validator:  validator.New(),
		logger:     logger,
	}
}

func (h *QualityHandler) Assess(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.assessUpload(c)
		return
	}

	var req models.AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format", err.Error())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", "Assessment request validation failed", err.Error())
		return
	}

	data, err := h.fetcher.FetchURL(c.Request.Context(), req.ImageURL)
	if err != nil {
		var ve *imaging.ValidationError
		if errors.As(err, &ve) {
			respondError(c, http.StatusUnprocessableEntity, "INVALID_IMAGE", "Image was rejected", gin.H{"reason": ve.Reason, "detail": ve.Detail})
			return
		}
		h.logger.WithError(err).WithField("image_url", req.ImageURL).Warn("Failed to fetch image for assessment")
		respondError(c, http.StatusBadGateway, "IMAGE_FETCH_FAILED", "Failed to fetch image", err.Error())
		return
	}

	h.respond(c, data, req.ItemName, req.Category, req.Description)
}

func (h *QualityHandler) assessUpload(c *gin.Context) {
	// Room for the form fields on top of the image itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+64<<10)

	var form models.AssessUpload
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_FORM", "Invalid multipart form", err.Error())
		return
	}
	if err := h.validator.Struct(&form); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", "Assessment request validation failed", err.Error())
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_IMAGE", "Form field 'image' is required", err.Error())
		return
	}
	if file.Size > h.maxUpload {
		respondError(c, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "Uploaded image exceeds the size limit", gin.H{"max_bytes": h.maxUpload})
		return
	}

	f, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_IMAGE", "Uploaded image could not be read", err.Error())
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_IMAGE", "Uploaded image could not be read", err.Error())
		return
	}

	h.respond(c, data, form.ItemName, form.Category, form.Description)
}

func (h *QualityHandler) respond(c *gin.Context, data []byte, itemName, category, description string) {
	strategy := h.strategies.Strategy(category)
	score := h.assessor.AssessBytes(data, description, quality.Context{
		ItemName:  itemName,
		Category:  category,
		Overrides: strategy.QualityOverrides,
	})
	score.Recommendation = quality.Recommend(score.Overall, strategy.MinQualityThreshold, strategy.AutoApprovalThreshold)

	c.JSON(http.StatusOK, gin.H{
		"item_name": itemName,
		"category":  category,
		"score":     score,
	})
}
