package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/services"
)

type Handlers struct {
	Health     *HealthHandler
	Search     *SearchHandler
	Collection *CollectionHandler
	Quality    *QualityHandler
	Sources    *SourcesHandler
	Strategy   *StrategyHandler
}

func New(logger *logrus.Logger, services *services.Services, maxUploadBytes int64) *Handlers {
	return &Handlers{
		Health:     NewHealthHandler(logger, services.Health),
		Search:     NewSearchHandler(services.Aggregator, logger),
		Collection: NewCollectionHandler(services.Orchestrator, services.Store, services.Strategies, logger),
		Quality:    NewQualityHandler(services.Quality, services.Processor, services.Strategies, maxUploadBytes, logger),
		Sources:    NewSourcesHandler(services.Sources, logger),
		Strategy:   NewStrategyHandler(services.Strategies, logger),
	}
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{"error": body})
}
