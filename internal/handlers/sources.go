package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/sources"
)

type SourceStates interface {
	States(ctx context.Context) []sources.SourceState
}

type SourcesHandler struct {
	registry SourceStates
	logger   *logrus.Logger
}

func NewSourcesHandler(registry SourceStates, logger *logrus.Logger) *SourcesHandler {
	return &SourcesHandler{registry: registry, logger: logger}
}

// List reports priority, remaining quota and breaker state per source.
func (h *SourcesHandler) List(c *gin.Context) {
	states := h.registry.States(c.Request.Context())
	if states == nil {
		states = []sources.SourceState{}
	}
	c.JSON(http.StatusOK, gin.H{
		"sources": states,
		"count":   len(states),
	})
}
