// Package flow posts submission notifications to a Power Automate flow.
// Notification is best effort: a failed post is logged and dropped, it
// never affects the outcome of the submission it announces.
package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("flow")

// Client posts complaint documents to a Power Automate HTTP trigger.
type Client struct {
	httpClient   *http.Client
	flowURL      string
	apiKeyHeader string
	apiKey       string
	logger       *zap.Logger
}

// NewClient creates a flow notifier. An empty flowURL disables it.
func NewClient(httpClient *http.Client, flowURL, apiKeyHeader, apiKey string, logger *zap.Logger) *Client {
	if apiKeyHeader == "" {
		apiKeyHeader = "x-api-key"
	}
	return &Client{
		httpClient:   httpClient,
		flowURL:      flowURL,
		apiKeyHeader: apiKeyHeader,
		apiKey:       apiKey,
		logger:       logger,
	}
}

// Enabled reports whether a flow URL is configured.
func (c *Client) Enabled() bool {
	return c.flowURL != ""
}

// Notify posts the complaint document to the flow trigger. The caller
// treats failures as best effort; nothing here is retried.
func (c *Client) Notify(ctx context.Context, doc map[string]any) error {
	if !c.Enabled() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "Flow.Notify")
	defer span.End()

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.flowURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("flow trigger returned status %d", resp.StatusCode)
	}
	c.logger.Debug("flow: notification delivered", zap.Int("status", resp.StatusCode))
	return nil
}
