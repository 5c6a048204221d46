// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"docstitch/internal/core/tx"
	"docstitch/internal/domain/stitching"
	"docstitch/internal/domain/totals"
	"docstitch/internal/domain/trade"
	"docstitch/internal/infrastructure/http/v1/handlers"
	"docstitch/internal/infrastructure/http/v1/middleware"
	"docstitch/internal/infrastructure/storage/postgres"
	"docstitch/pkg/logger"
	"docstitch/pkg/numerator"
)

// RouterConfig holds the wired collaborators the API needs.
type RouterConfig struct {
	Pool   *pgxpool.Pool
	Logger *logger.Logger

	Documents trade.DocumentRepository
	Lines     trade.LineRepository
	Statuses  trade.StatusCatalog
	Numerator *numerator.Service
	Totals    *totals.Service
	TxManager tx.ReadOnlyManager

	Orchestrator *stitching.Orchestrator
	Audit        *postgres.StitchAudit

	// FormTokens may be nil to disable double-submit protection.
	FormTokens *middleware.FormTokenService
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	baseHandler := handlers.NewBaseHandler()

	api := router.Group("/api/v1")
	{
		stitchHandler := handlers.NewStitchHandler(baseHandler, cfg.Orchestrator, cfg.FormTokens)
		stitch := api.Group("/stitch")
		{
			stitch.GET("/token", stitchHandler.Token)
			stitch.GET("/:kind/candidates", stitchHandler.Candidates)
			stitch.POST("/:kind", middleware.RequireFormToken(cfg.FormTokens), stitchHandler.Run)

			if cfg.Audit != nil {
				auditHandler := handlers.NewAuditHandler(baseHandler, cfg.Audit)
				stitch.GET("/:kind/history", auditHandler.History)
			}
		}

		docHandler := handlers.NewDocumentHandler(
			baseHandler, cfg.Documents, cfg.Lines, cfg.Statuses,
			cfg.Numerator, cfg.Totals, cfg.TxManager,
		)
		docs := api.Group("/documents")
		{
			docs.GET("/:kind/:code", docHandler.Get)
			docs.POST("/:kind", docHandler.Create)
		}
	}

	return router
}
