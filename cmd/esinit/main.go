// esinit provisions the document store: it creates or updates the ingest
// pipeline, then creates the complaints index or, when it already exists,
// points its default pipeline at the current one and refreshes the mapping.
// One-shot tool, safe to re-run.
package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rawbank/reclamations-gateway-go/internal/config"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/elastic"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/observability"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/resilience"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

//go:embed complaints_pipeline.json
var pipelineBody []byte

//go:embed complaints_index.json
var indexBody []byte

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.ValidateForSetup(); err != nil {
		logger.Fatal("setup aborted", zap.Error(err))
	}

	var pipeline map[string]any
	if err := json.Unmarshal(pipelineBody, &pipeline); err != nil {
		logger.Fatal("invalid embedded pipeline definition", zap.Error(err))
	}
	var index map[string]any
	if err := json.Unmarshal(indexBody, &index); err != nil {
		logger.Fatal("invalid embedded index definition", zap.Error(err))
	}
	// The embedded default_pipeline must track the configured name.
	if settings, ok := index["settings"].(map[string]any); ok {
		if idx, ok := settings["index"].(map[string]any); ok {
			idx["default_pipeline"] = cfg.ElasticPipeline
		}
	}

	resilienceCfg := resilience.Config{
		MaxRetries:        cfg.MaxRetries,
		InitialBackoff:    cfg.InitialBackoff,
		BackoffMultiplier: cfg.BackoffMultiplier,
		MaxBackoff:        cfg.MaxBackoff,
		MaxConcurrency:    cfg.MaxConcurrency,
	}
	client := elastic.NewClient(
		&http.Client{Timeout: cfg.HTTPTimeout},
		cfg.ElasticURL,
		cfg.ElasticIndex,
		cfg.ElasticPipeline,
		cfg.ElasticAPIKey,
		cfg.ElasticUsername,
		cfg.ElasticPassword,
		resilience.NewCircuitBreaker("elastic-setup"),
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := client.PutPipeline(ctx, resilienceCfg, cfg.ElasticPipeline, pipeline); err != nil {
		logger.Fatal("pipeline setup failed", zap.Error(err))
	}
	logger.Info("ingest pipeline created/updated", zap.String("pipeline", cfg.ElasticPipeline))

	exists, err := client.IndexExists(ctx, cfg.ElasticIndex)
	if err != nil {
		logger.Fatal("index existence check failed", zap.Error(err))
	}

	if exists {
		logger.Info("index exists, updating settings and mapping", zap.String("index", cfg.ElasticIndex))
		if err := client.SetDefaultPipeline(ctx, resilienceCfg, cfg.ElasticIndex, cfg.ElasticPipeline); err != nil {
			logger.Fatal("default pipeline update failed", zap.Error(err))
		}
		mappings, ok := index["mappings"].(map[string]any)
		if !ok {
			logger.Info("no mappings section to update")
		} else if err := client.UpdateMapping(ctx, resilienceCfg, cfg.ElasticIndex, mappings); err != nil {
			logger.Fatal("mapping update failed", zap.Error(err))
		}
	} else {
		if err := client.CreateIndex(ctx, resilienceCfg, cfg.ElasticIndex, index); err != nil {
			logger.Fatal("index creation failed", zap.Error(err))
		}
		logger.Info("index created", zap.String("index", cfg.ElasticIndex))
	}

	logger.Info("document store setup complete")
}
