// Package elastic wraps HTTP calls to the Elasticsearch document store.
// The store is treated as a black-box document API: one write endpoint
// behind an index + ingest pipeline, plus the handful of admin calls the
// provisioning tool needs.
package elastic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("elastic")

// Client writes complaint documents to the configured index through the
// configured ingest pipeline.
type Client struct {
	httpClient *http.Client
	baseURL    string
	index      string
	pipeline   string
	apiKey     string
	username   string
	password   string
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger

	warnNoAuth sync.Once
}

// NewClient creates an Elasticsearch client. Exactly one authentication
// scheme is used per request: API key if configured, else HTTP Basic if
// both username and password are present, else none (warned once).
func NewClient(httpClient *http.Client, baseURL, index, pipeline, apiKey, username, password string, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		index:      index,
		pipeline:   pipeline,
		apiKey:     apiKey,
		username:   username,
		password:   password,
		cb:         cb,
		logger:     logger,
	}
}

// authHeader returns the single Authorization header value, or "" when no
// credentials are configured. The request is still attempted in that case;
// some deployments run the store without security enabled.
func (c *Client) authHeader() string {
	if c.apiKey != "" {
		return "ApiKey " + c.apiKey
	}
	if c.username != "" && c.password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
		return "Basic " + token
	}
	c.warnNoAuth.Do(func() {
		c.logger.Warn("elastic: no auth configured (API key or username/password), requests sent unauthenticated")
	})
	return ""
}

// do executes one request against the store and classifies the outcome:
// network failures become ErrTransport, non-2xx responses ErrFunctional.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, &domain.ErrTransport{Service: "elasticsearch", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if auth := c.authHeader(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &domain.ErrTimeout{Operation: method + " " + path}
		}
		return nil, &domain.ErrTransport{Service: "elasticsearch", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ErrTransport{Service: "elasticsearch", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("elastic: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, &domain.ErrFunctional{Service: "elasticsearch", Status: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// IndexDocument writes one complaint document through the ingest pipeline.
// No retry: the write path is deliberately single-shot, a duplicated
// complaint is worse than a visible failure.
func (c *Client) IndexDocument(ctx context.Context, doc map[string]any) error {
	ctx, span := tracer.Start(ctx, "Elastic.IndexDocument")
	defer span.End()
	span.SetAttributes(attribute.String("elastic.index", c.index))

	path := fmt.Sprintf("/%s/_doc?pipeline=%s", url.PathEscape(c.index), url.QueryEscape(c.pipeline))

	_, err := c.cb.Execute(func() (any, error) {
		return c.do(ctx, http.MethodPost, path, doc)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &domain.ErrTransport{Service: "elasticsearch", Err: err}
		}
		return err
	}
	return nil
}
