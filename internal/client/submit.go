package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
)

// genericSubmitError is shown when the gateway is unreachable or its
// response carries no usable message.
const genericSubmitError = "Erreur API"

// SubmitResult is the tagged outcome of one submission attempt. Exactly one
// of Ack or ErrMessage is meaningful, selected by OK.
type SubmitResult struct {
	OK         bool
	Ack        *domain.ServerAck
	ErrMessage string
	Fields     []FieldError
}

// FieldError is one field-scoped rejection reported by the gateway.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SubmitClient posts a complaint to the gateway. A submission is fired
// exactly once: it is not idempotent, so no retry ever happens here, and
// every failure mode folds into a result instead of a panic.
type SubmitClient struct {
	gateway *GatewayClient
}

// NewSubmitClient creates a submission client over a gateway client.
func NewSubmitClient(gateway *GatewayClient) *SubmitClient {
	return &SubmitClient{gateway: gateway}
}

// Submit sends the record and folds whatever happens into a SubmitResult.
func (c *SubmitClient) Submit(ctx context.Context, record *domain.ComplaintRecord) SubmitResult {
	payload, err := json.Marshal(record)
	if err != nil {
		return SubmitResult{ErrMessage: genericSubmitError}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gateway.baseURL+"/api/complaints", bytes.NewReader(payload))
	if err != nil {
		return SubmitResult{ErrMessage: genericSubmitError}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.gateway.httpClient.Do(req)
	if err != nil {
		return SubmitResult{ErrMessage: genericSubmitError}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SubmitResult{ErrMessage: genericSubmitError}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorResult(body)
	}

	var ack domain.ServerAck
	if err := json.Unmarshal(body, &ack); err != nil || ack.TrackingID == "" {
		return SubmitResult{ErrMessage: genericSubmitError}
	}
	return SubmitResult{OK: true, Ack: &ack}
}

// errorResult extracts the gateway's {"error", "details"} shape; a body
// that is not that shape degrades to the generic message.
func errorResult(body []byte) SubmitResult {
	var apiErr struct {
		Error   string       `json:"error"`
		Details []FieldError `json:"details"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error == "" {
		return SubmitResult{ErrMessage: genericSubmitError}
	}
	return SubmitResult{ErrMessage: apiErr.Error, Fields: apiErr.Details}
}
