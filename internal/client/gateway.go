// Package client is the form-side counterpart of the gateway: a single-shot
// submission client and a debounced, retrying account lookup watcher. It is
// what an embedding application (kiosk, internal tool, test harness) uses to
// drive the complaint form against a running gateway.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
)

// GatewayClient performs the raw HTTP calls against the gateway API.
type GatewayClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewGatewayClient creates a client for a gateway at baseURL
// (e.g. "http://localhost:4000").
func NewGatewayClient(httpClient *http.Client, baseURL string) *GatewayClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GatewayClient{httpClient: httpClient, baseURL: baseURL}
}

// GetAccounts resolves the selectable accounts for an eligible query. The
// response list is normalized into the canonical {id, label} shape whatever
// keys the gateway (or an older gateway version) returns.
func (c *GatewayClient) GetAccounts(ctx context.Context, query domain.LookupQuery) ([]domain.Account, error) {
	key := "clientId"
	if query.Mode == domain.LookupByPhone {
		key = "phone"
	}
	payload, err := json.Marshal(map[string]string{key: query.Digits})
	if err != nil {
		return nil, fmt.Errorf("encode lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/accounts", bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.ErrTransport{Service: "gateway", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &domain.ErrTimeout{Operation: "account lookup"}
		}
		return nil, &domain.ErrTransport{Service: "gateway", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ErrTransport{Service: "gateway", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.ErrFunctional{
			Service: "gateway",
			Status:  resp.StatusCode,
			Body:    string(body),
			Message: errorMessage(body),
		}
	}

	var envelope struct {
		OK       bool             `json:"ok"`
		Error    string           `json:"error"`
		Accounts []map[string]any `json:"accounts"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &domain.ErrTransport{Service: "gateway", Err: fmt.Errorf("decode lookup response: %w", err)}
	}
	if !envelope.OK {
		return nil, &domain.ErrFunctional{
			Service: "gateway",
			Status:  resp.StatusCode,
			Body:    string(body),
			Message: envelope.Error,
		}
	}
	return domain.NormalizeAccounts(envelope.Accounts), nil
}

// errorMessage pulls the gateway's {"error": ...} message out of a rejection
// body. An opaque body yields the empty string and the caller falls back to
// its generic text.
func errorMessage(body []byte) string {
	var shape struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return ""
	}
	return shape.Error
}
