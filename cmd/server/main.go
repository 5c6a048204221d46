// Package main is the entry point for the docstitch API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"docstitch/internal/config"
	"docstitch/internal/core/types"
	"docstitch/internal/domain/generator"
	"docstitch/internal/domain/stitching"
	"docstitch/internal/domain/totals"
	"docstitch/internal/infrastructure/cache"
	v1 "docstitch/internal/infrastructure/http/v1"
	"docstitch/internal/infrastructure/http/v1/middleware"
	"docstitch/internal/infrastructure/storage/postgres"
	"docstitch/internal/infrastructure/storage/postgres/document_repo"
	"docstitch/internal/infrastructure/storage/postgres/status_repo"
	"docstitch/pkg/logger"
	"docstitch/pkg/numerator"
)

func main() {
	// Local .env is optional; real deployments set env vars directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting docstitch server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DB.DSN)
	if cfg.DB.MaxConns > 0 {
		poolCfg.MaxConns = cfg.DB.MaxConns
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	docRepo := document_repo.NewDocumentRepo(txManager)
	lineRepo := document_repo.NewLineRepo(txManager)
	statusRepo := status_repo.NewStatusRepo(txManager)

	// --- Services ---
	// Strict allocation joins the round's transaction (a rolled back invoice
	// returns its number); cached range reservation must not, or a rollback
	// would strand the in-memory range ahead of the stored sequence.
	numeratorService := numerator.New(txManager)
	numeratorService.UseRangeQuerier(pool.Unwrap())

	rateCache := cache.NewRateCache(pool.Unwrap(), loadTaxRates(cfg))
	if err := rateCache.Start(ctx); err != nil {
		log.Fatalw("failed to start tax rate cache", "error", err)
	}
	defer rateCache.Stop()

	totalsService := totals.NewService(docRepo, lineRepo, rateCache)

	generatorService := generator.NewService(
		docRepo, lineRepo, statusRepo, numeratorService, totalsService,
	)

	auditRecorder, err := postgres.NewStitchAudit(txManager)
	if err != nil {
		log.Fatalw("failed to initialize stitch audit", "error", err)
	}

	var extensions []stitching.Extension
	if cfg.StitchRule != "" {
		rule, err := stitching.NewCELRule("config-rule", cfg.StitchRule)
		if err != nil {
			log.Fatalw("invalid stitch rule expression", "error", err)
		}
		extensions = append(extensions, rule)
		log.Info("stitch rule enabled")
	}

	// Stitch rounds update every source document and insert the generated
	// one, so concurrent rounds over the same set must not interleave.
	stitchTxManager := txManager.WithOptions(postgres.SerializableTxOptions())
	orchestrator := stitching.NewOrchestrator(
		docRepo, lineRepo, statusRepo, generatorService,
		stitchTxManager, auditRecorder, extensions...,
	)

	// --- Form tokens ---
	var formTokens *middleware.FormTokenService
	if cfg.Forms.Secret != "" {
		formTokens = middleware.NewFormTokenService([]byte(cfg.Forms.Secret), cfg.Forms.TTL)
	} else {
		log.Warn("FORM_TOKEN_SECRET not set, double-submit protection disabled")
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool.Unwrap(),
		Logger:       log,
		Documents:    docRepo,
		Lines:        lineRepo,
		Statuses:     statusRepo,
		Numerator:    numeratorService,
		Totals:       totalsService,
		TxManager:    txManager,
		Orchestrator: orchestrator,
		Audit:        auditRecorder,
		FormTokens:   formTokens,
	})

	// --- HTTP server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTP.Addr(), "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// loadTaxRates parses the configured tax table into a rate source. Codes with
// unparseable rates are skipped with a warning rather than failing startup.
func loadTaxRates(cfg *config.Config) totals.StaticRates {
	rates := make(totals.StaticRates, len(cfg.TaxRates))
	for code, raw := range cfg.TaxRates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			logger.Warn(context.Background(), "skipping invalid tax rate", "code", code, "rate", raw)
			continue
		}
		rates[code] = types.Percent(rate)
	}
	return rates
}
