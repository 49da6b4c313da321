package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/internal/database"
	"github.com/temcen/vocabimg/internal/handlers"
	"github.com/temcen/vocabimg/internal/middleware"
	"github.com/temcen/vocabimg/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	registry *prometheus.Registry
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
	cancel   context.CancelFunc
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config:   cfg,
		logger:   setupLogger(cfg),
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	// Initialize services
	services, err := services.New(cfg, app.logger, db, app.registry)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = services

	// Initialize handlers
	app.handlers = handlers.New(app.logger, services, services.Processor.Options().MaxBytes)

	// Setup router
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Start launches the background collection scheduler.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if a.config.Collection.SchedulerSpec == "" {
		a.logger.Info("Collection scheduler disabled")
		return nil
	}
	return a.services.Scheduler.Start(ctx)
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan error, 1)
	go func() { done <- a.services.Close() }()
	select {
	case err := <-done:
		if err != nil {
			a.logger.WithError(err).Error("Error closing services")
		}
	case <-ctx.Done():
		a.logger.Warn("Timed out waiting for services to stop")
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	a.router = newRouter(a.logger, a.config, a.services, a.handlers, a.registry)
}

func newRouter(logger *logrus.Logger, cfg *config.Config, svc *services.Services, h *handlers.Handlers, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.Security.CORS))
	router.Use(middleware.Metrics(svc.Metrics))

	// Health check endpoints (no auth required)
	router.GET("/health", h.Health.Check)

	// Prometheus metrics endpoint (no auth required)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API routes
	api := router.Group("/api/v1")
	{
		api.Use(middleware.Auth(svc.Auth, logger))

		api.POST("/search", h.Search.Search)
		api.GET("/sources", h.Sources.List)
		api.POST("/quality/assess", h.Quality.Assess)

		collections := api.Group("/collections")
		{
			collections.POST("/items", h.Collection.CollectItem)
			collections.GET("/items/:itemId", h.Collection.GetItem)
			collections.POST("/categories/:categoryId", h.Collection.CollectCategory)
			collections.GET("/categories/:categoryId", h.Collection.GetCategory)
		}

		strategies := api.Group("/strategies")
		{
			strategies.GET("/:categoryId", h.Strategy.Get)
			strategies.PUT("/:categoryId", middleware.RequireRole(services.RoleAdmin), h.Strategy.Put)
		}
	}

	return router
}
