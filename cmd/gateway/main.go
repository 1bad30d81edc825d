package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rawbank/reclamations-gateway-go/internal/config"
	"github.com/rawbank/reclamations-gateway-go/internal/domain"
	"github.com/rawbank/reclamations-gateway-go/internal/handler"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/accounts"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/cache"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/elastic"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/flow"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/observability"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/resilience"
	"github.com/rawbank/reclamations-gateway-go/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = godotenv.Load()

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("frontend_origin", cfg.FrontendOrigin),
		zap.String("elastic_index", cfg.ElasticIndex),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("flow_enabled", cfg.FlowURL != ""),
	)
	if cfg.ElasticURL == "" {
		logger.Warn("ELASTIC_URL not set, submissions will fail until configured")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "reclamations-gateway")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:        cfg.MaxRetries,
		InitialBackoff:    cfg.InitialBackoff,
		BackoffMultiplier: cfg.BackoffMultiplier,
		MaxBackoff:        cfg.MaxBackoff,
		MaxConcurrency:    cfg.MaxConcurrency,
	}
	elasticBreaker := resilience.NewCircuitBreaker("elastic")
	accountsBreaker := resilience.NewCircuitBreaker("accounts")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	elasticClient := elastic.NewClient(
		httpClient,
		cfg.ElasticURL,
		cfg.ElasticIndex,
		cfg.ElasticPipeline,
		cfg.ElasticAPIKey,
		cfg.ElasticUsername,
		cfg.ElasticPassword,
		elasticBreaker,
		logger,
	)
	accountsClient := accounts.NewClient(
		httpClient,
		cfg.AccountsTokenURL,
		cfg.AccountsClientID,
		cfg.AccountsClientSecret,
		cfg.AccountsScope,
		cfg.AccountsDetailsURL,
		cfg.TokenTTLFallback,
		accountsBreaker,
		resilienceCfg,
		metrics,
		logger,
	)
	flowClient := flow.NewClient(httpClient, cfg.FlowURL, cfg.FlowAPIKeyHeader, cfg.FlowAPIKey, logger)

	// --- Services ---
	motifs, err := service.NewMotifResolver()
	if err != nil {
		logger.Fatal("failed to load motif table", zap.Error(err))
	}
	tracking := cache.New[domain.SubmissionStatus](cfg.TrackingTTL)
	complaintsSvc := service.NewComplaintsService(
		elasticClient,
		accountsClient,
		flowClient,
		motifs,
		tracking,
		metrics,
		logger,
	)
	lookupSvc := service.NewLookupService(accountsClient, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(cfg, complaintsSvc, lookupSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
