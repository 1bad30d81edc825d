// Package accounts is the client for the internal account-resolution
// backend: a client-credentials token endpoint plus a customer-detail
// endpoint returning the account list for a client number or phone number.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/cache"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/observability"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/resilience"
	"github.com/rawbank/reclamations-gateway-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("accounts")

const tokenCacheKey = "accounts_token"

// tokenExpiryMargin is shaved off the token lifetime so a cached token is
// never presented moments before it expires.
const tokenExpiryMargin = 30 * time.Second

// Client resolves customers against the accounts backend. Token fetches
// are cached and deduplicated; detail calls go through a bulkhead, retry
// and circuit breaker.
type Client struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	detailsURL   string

	tokens      *cache.InMemory[string]
	fallbackTTL time.Duration
	group       singleflight.Group
	bulkhead    *resilience.Bulkhead
	cb          *gobreaker.CircuitBreaker
	cfg         resilience.Config
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewClient creates an accounts backend client.
func NewClient(httpClient *http.Client, tokenURL, clientID, clientSecret, scope, detailsURL string, fallbackTTL time.Duration, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient:   httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		detailsURL:   detailsURL,
		tokens:       cache.New[string](fallbackTTL),
		fallbackTTL:  fallbackTTL,
		bulkhead:     resilience.NewBulkhead(cfg.MaxConcurrency),
		cb:           cb,
		cfg:          cfg,
		metrics:      metrics,
		logger:       logger,
	}
}

// ResolveByClientNumber fetches customer details for an 8-digit client number.
func (c *Client) ResolveByClientNumber(ctx context.Context, clientNumber string) (*port.CustomerDetail, error) {
	return c.resolve(ctx, map[string]string{"customerCode": clientNumber})
}

// ResolveByPhone fetches customer details for a 10-digit phone number.
func (c *Client) ResolveByPhone(ctx context.Context, phone string) (*port.CustomerDetail, error) {
	return c.resolve(ctx, map[string]string{"phoneNumber": phone})
}

// --- token management ---

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a valid bearer token, fetching one if the cache is empty.
// Concurrent refreshes are collapsed into a single request.
func (c *Client) token(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Get(tokenCacheKey); ok {
		c.metrics.IncrCacheHit(tokenCacheKey)
		return tok, nil
	}
	c.metrics.IncrCacheMiss(tokenCacheKey)

	v, err, _ := c.group.Do(tokenCacheKey, func() (any, error) {
		// Another caller may have refreshed while we queued.
		if tok, ok := c.tokens.Get(tokenCacheKey); ok {
			return tok, nil
		}
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	if c.tokenURL == "" {
		return "", &domain.ErrConfiguration{Setting: "ACCOUNTS_TOKEN_URL", Reason: "token URL not configured"}
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	if c.clientID != "" {
		form.Set("client_id", c.clientID)
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}
	if c.scope != "" {
		form.Set("scope", c.scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &domain.ErrTransport{Service: "accounts/token", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.ErrTransport{Service: "accounts/token", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.ErrTransport{Service: "accounts/token", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.ErrFunctional{Service: "accounts/token", Status: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &domain.ErrTransport{Service: "accounts/token", Err: err}
	}
	if tr.AccessToken == "" {
		return "", &domain.ErrFunctional{Service: "accounts/token", Status: resp.StatusCode, Body: "token missing in response"}
	}

	c.tokens.SetWithTTL(tokenCacheKey, tr.AccessToken, c.tokenTTL(tr))
	return tr.AccessToken, nil
}

// tokenTTL derives how long to cache a token: the JWT exp claim when the
// token is one, else the advertised expires_in, else the fallback.
func (c *Client) tokenTTL(tr tokenResponse) time.Duration {
	if claims := parseExpiry(tr.AccessToken); !claims.IsZero() {
		if ttl := time.Until(claims) - tokenExpiryMargin; ttl > 0 {
			return ttl
		}
	}
	if tr.ExpiresIn > 0 {
		if ttl := time.Duration(tr.ExpiresIn)*time.Second - tokenExpiryMargin; ttl > 0 {
			return ttl
		}
	}
	return c.fallbackTTL
}

// parseExpiry reads the exp claim without verifying the signature; the
// gateway is the token's consumer, not its audience validator.
func parseExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// --- customer detail ---

// backendResponse mirrors the partner API envelope. "cutomerDetail" is the
// key as actually delivered by the partner; do not fix the spelling.
type backendResponse struct {
	CustomerDetail struct {
		CustomerName string           `json:"customerName"`
		AccountList  []backendAccount `json:"accountList"`
	} `json:"cutomerDetail"`
}

type backendAccount struct {
	AgencyCode    string          `json:"agencyCode"`
	AccountNumber string          `json:"accountNumber"`
	Suffix        string          `json:"suffix"`
	CurrencyCode  json.RawMessage `json:"currencyCode"`
}

func (c *Client) resolve(ctx context.Context, body map[string]string) (*port.CustomerDetail, error) {
	ctx, span := tracer.Start(ctx, "Accounts.Resolve")
	defer span.End()

	if c.detailsURL == "" {
		return nil, &domain.ErrConfiguration{Setting: "ACCOUNTS_DETAILS_URL", Reason: "details URL not configured"}
	}

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	var detail *port.CustomerDetail
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			d, err := c.fetchDetail(ctx, body)
			if err != nil {
				var functional *domain.ErrFunctional
				if errors.As(err, &functional) {
					if functional.Status == http.StatusUnauthorized {
						// Token may have been revoked early; force a refresh.
						c.tokens.Delete(tokenCacheKey)
					}
					return resilience.Permanent(err)
				}
				return err
			}
			detail = d
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ErrTransport{Service: "accounts", Err: err}
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("accounts.count", len(detail.Accounts)))
	return detail, nil
}

func (c *Client) fetchDetail(ctx context.Context, body map[string]string) (*port.CustomerDetail, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode detail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.detailsURL, strings.NewReader(string(payload)))
	if err != nil {
		return nil, &domain.ErrTransport{Service: "accounts", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &domain.ErrTimeout{Operation: "accounts detail"}
		}
		return nil, &domain.ErrTransport{Service: "accounts", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ErrTransport{Service: "accounts", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("accounts: non-2xx response",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, &domain.ErrFunctional{Service: "accounts", Status: resp.StatusCode, Body: string(respBody)}
	}

	var decoded backendResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &domain.ErrTransport{Service: "accounts", Err: fmt.Errorf("decode detail response: %w", err)}
	}

	detail := &port.CustomerDetail{
		CustomerName: decoded.CustomerDetail.CustomerName,
		Accounts:     make([]port.BackendAccount, 0, len(decoded.CustomerDetail.AccountList)),
	}
	for _, a := range decoded.CustomerDetail.AccountList {
		detail.Accounts = append(detail.Accounts, port.BackendAccount{
			AgencyCode:    a.AgencyCode,
			AccountNumber: a.AccountNumber,
			Suffix:        a.Suffix,
			CurrencyCode:  rawToString(a.CurrencyCode),
		})
	}
	return detail, nil
}

// rawToString flattens a currencyCode that arrives either as a number or a
// string depending on the backend version.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
