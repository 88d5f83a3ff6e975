package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/outfitter/backend/config"
	httpDelivery "github.com/outfitter/backend/internal/delivery/http"
	"github.com/outfitter/backend/internal/domain"
	"github.com/outfitter/backend/internal/infrastructure/cache"
	"github.com/outfitter/backend/internal/infrastructure/fetch"
	"github.com/outfitter/backend/internal/infrastructure/llm"
	"github.com/outfitter/backend/internal/infrastructure/search"
	"github.com/outfitter/backend/internal/logger"
	"github.com/outfitter/backend/internal/metrics"
	"github.com/outfitter/backend/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.NewLogger(cfg.Server.Environment, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	zl.Info("Starting Outfitter backend",
		zap.String("env", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache_type", cfg.Cache.Type),
		zap.Duration("cache_ttl", cfg.Cache.TTL),
		zap.String("llm_model", cfg.LLM.Model))

	metrics.Register()

	// Initialize infrastructure dependencies
	cacheRepo, closeCache := buildCache(cfg, zl)
	defer closeCache()

	searchCfg := search.Config{
		APIKey:  cfg.Search.APIKey,
		BaseURL: cfg.Search.BaseURL,
		Engine:  cfg.Search.Engine,
		PerHour: cfg.RateLimit.Search,
	}
	if cfg.Search.UseProxy {
		searchCfg.ProxyURL = cfg.Fetch.ProxyURL
	}
	searchClient := search.NewClient(searchCfg, zl)
	if cfg.Search.APIKey == "" {
		zl.Warn("Search provider key not configured; every category will return zero candidates")
	}

	fetcher := fetch.NewClient(fetch.Config{
		ProxyURL:        cfg.Fetch.ProxyURL,
		Timeout:         cfg.Fetch.Timeout,
		MaxContentChars: cfg.Fetch.MaxContentChars,
	}, zl)

	generator := llm.NewRetryingInvoker(
		llm.NewClient(&llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Logger:  zl,
		}),
		llm.RetryConfig{MaxRetries: cfg.LLM.MaxRetries, InitialDelay: cfg.LLM.RetryInitialDelay},
		zl,
	)

	// Initialize usecase layer
	p := cfg.Pipeline
	stages := usecase.Stages{
		Discovery: usecase.NewCategoryDiscovery(searchClient, zl),
		Verifier: usecase.NewBatchVerifier(fetcher, generator, usecase.BatchVerifierConfig{
			BatchSize:          p.BatchSize,
			MaxItems:           p.MaxItemsPerCategory,
			ContentSampleChars: p.ContentSampleChars,
		}, zl),
		Validator: usecase.NewHeuristicValidator(usecase.HeuristicValidatorConfig{
			PriceCapRatio:    p.PriceCapRatio,
			DefaultMaxBudget: p.DefaultMaxBudget,
		}),
		Scorer: usecase.NewStyleScorer(generator, zl),
		Composer: usecase.NewOutfitComposer(generator, usecase.OutfitComposerConfig{
			BundleCount:      p.BundleCount,
			DefaultMaxBudget: p.DefaultMaxBudget,
		}, zl),
	}
	orchestrator := usecase.NewOrchestrator(stages, cacheRepo, usecase.OrchestratorConfig{
		MaxParallelCategories: p.MaxParallelCategories,
		SimplifiedTopN:        p.SimplifiedTopN,
		BudgetResortRatio:     p.BudgetResortRatio,
		DefaultMaxBudget:      p.DefaultMaxBudget,
		CacheTTL:              cfg.Cache.TTL,
	}, zl)

	zl.Info("Pipeline configured",
		zap.Int("batch_size", p.BatchSize),
		zap.Int("max_items", p.MaxItemsPerCategory),
		zap.Int("parallel_categories", p.MaxParallelCategories),
		zap.Float64("price_cap_ratio", p.PriceCapRatio),
		zap.Float64("budget_resort_ratio", p.BudgetResortRatio))

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(orchestrator, zl)
	router := httpDelivery.SetupRouter(cfg, handler, zl)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		zl.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	zl.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Error during shutdown", zap.Error(err))
	}
	zl.Info("Server stopped gracefully")
}

// buildCache returns the configured cache backend and its close function
func buildCache(cfg *config.Config, zl *zap.Logger) (domain.CacheRepository, func()) {
	if cfg.Cache.Type == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		redisCache, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err != nil {
			zl.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		zl.Info("Using Redis cache")
		return redisCache, func() { _ = redisCache.Close() }
	}

	memoryCache := cache.NewMemoryCache()
	zl.Info("Using in-memory cache")
	return memoryCache, func() { _ = memoryCache.Close() }
}
