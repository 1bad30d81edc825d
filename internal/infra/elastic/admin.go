package elastic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/resilience"
)

// Admin operations used by the provisioning tool (cmd/esinit). All of them
// are idempotent PUT/HEAD calls, so transport failures are retried.

// PutPipeline creates or updates the named ingest pipeline.
func (c *Client) PutPipeline(ctx context.Context, cfg resilience.Config, name string, body map[string]any) error {
	path := "/_ingest/pipeline/" + url.PathEscape(name)
	return c.adminPut(ctx, cfg, path, body)
}

// IndexExists checks whether the named index already exists.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	_, err := c.do(ctx, http.MethodHead, "/"+url.PathEscape(name), nil)
	if err == nil {
		return true, nil
	}
	var functional *domain.ErrFunctional
	if errors.As(err, &functional) && functional.Status == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// CreateIndex creates the named index with the given settings + mappings.
func (c *Client) CreateIndex(ctx context.Context, cfg resilience.Config, name string, body map[string]any) error {
	return c.adminPut(ctx, cfg, "/"+url.PathEscape(name), body)
}

// SetDefaultPipeline points the index's default_pipeline at the named
// ingest pipeline.
func (c *Client) SetDefaultPipeline(ctx context.Context, cfg resilience.Config, index, pipeline string) error {
	body := map[string]any{
		"index": map[string]any{"default_pipeline": pipeline},
	}
	return c.adminPut(ctx, cfg, fmt.Sprintf("/%s/_settings", url.PathEscape(index)), body)
}

// UpdateMapping applies the mappings section to an existing index.
func (c *Client) UpdateMapping(ctx context.Context, cfg resilience.Config, index string, mappings map[string]any) error {
	return c.adminPut(ctx, cfg, fmt.Sprintf("/%s/_mapping", url.PathEscape(index)), mappings)
}

func (c *Client) adminPut(ctx context.Context, cfg resilience.Config, path string, body map[string]any) error {
	return resilience.RetryWithBackoff(ctx, cfg, func() error {
		_, err := c.do(ctx, http.MethodPut, path, body)
		var functional *domain.ErrFunctional
		if errors.As(err, &functional) {
			// The store answered; retrying an explicit rejection is pointless.
			return resilience.Permanent(err)
		}
		return err
	})
}
