// Package api is the REST client for the EAILI5 backend. The backend
// contract is treated as opaque JSON; unknown fields are ignored and
// monetary amounts are decoded as decimals.
package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/eaili5/eaili5/internal/config"
	"github.com/eaili5/eaili5/internal/domain"
	"github.com/eaili5/eaili5/internal/logging"
)

// APIError is returned for non-2xx backend responses.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: backend returned %d: %s", e.Status, e.Body)
}

// Client talks to the EAILI5 backend REST surface.
type Client struct {
	http *resty.Client
	log  *logging.Logger
}

// New creates a backend client from config.
func New(cfg config.APIConfig, log *logging.Logger) *Client {
	hc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout()).
		SetHeader("Accept", "application/json").
		// decode responses as JSON regardless of the Content-Type the
		// backend reports
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			r.ForceContentType("application/json")
			return nil
		})
	if cfg.APIKey != "" {
		hc.SetAuthToken(cfg.APIKey)
	}
	return &Client{
		http: hc,
		log:  log.Sub("api"),
	}
}

// get runs a GET, decoding the body into out.
func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	req := c.http.R().SetContext(ctx).SetResult(out)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(path)
	return checkResp(resp, err)
}

// post runs a POST with a JSON body, decoding the response into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	req := c.http.R().SetContext(ctx).SetBody(body)
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Post(path)
	return checkResp(resp, err)
}

func checkResp(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("api: request failed: %w", err)
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}

// Health checks backend liveness.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	err := c.get(ctx, "/api/health", nil, &out)
	return out, err
}

// TokensParams filters the token list.
type TokensParams struct {
	Category string
	Limit    int
}

// Tokens fetches the base token list, overlay-ready as domain snapshots.
func (c *Client) Tokens(ctx context.Context, p TokensParams) ([]domain.TokenSnapshot, error) {
	query := map[string]string{}
	if p.Category != "" {
		query["category"] = p.Category
	}
	if p.Limit > 0 {
		query["limit"] = strconv.Itoa(p.Limit)
	}

	var out tokensResponse
	if err := c.get(ctx, "/api/tokens", query, &out); err != nil {
		return nil, err
	}

	snaps := make([]domain.TokenSnapshot, 0, len(out.Tokens))
	for _, t := range out.Tokens {
		snaps = append(snaps, t.Snapshot())
	}
	c.log.Debug().Int("count", len(snaps)).Str("category", p.Category).Msg("fetched token list")
	return snaps, nil
}

// Token fetches detail for a single token by address.
func (c *Client) Token(ctx context.Context, address string) (domain.TokenSnapshot, error) {
	var out Token
	if err := c.get(ctx, "/api/tokens/"+address, nil, &out); err != nil {
		return domain.TokenSnapshot{}, err
	}
	return out.Snapshot(), nil
}

// TokenOHLC fetches OHLC bars for a token.
func (c *Client) TokenOHLC(ctx context.Context, address string) ([]Candle, error) {
	var out ohlcResponse
	if err := c.get(ctx, "/api/tokens/"+address+"/ohlc", nil, &out); err != nil {
		return nil, err
	}
	return out.Candles, nil
}

// Portfolio fetches the simulated portfolio for a user.
func (c *Client) Portfolio(ctx context.Context, userID string) (*Portfolio, error) {
	var out Portfolio
	if err := c.get(ctx, "/api/portfolio/"+userID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SimulatePortfolio asks the backend to project a hypothetical portfolio.
func (c *Client) SimulatePortfolio(ctx context.Context, req SimulationRequest) (*SimulationResult, error) {
	var out SimulationResult
	if err := c.post(ctx, "/api/portfolio/simulate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConnectWallet registers a wallet with the backend.
func (c *Client) ConnectWallet(ctx context.Context, address, network string) (*WalletStatus, error) {
	body := map[string]string{"address": address, "network": network}
	var out WalletStatus
	if err := c.post(ctx, "/api/wallet/connect", body, &out); err != nil {
		return nil, err
	}
	c.log.Info().Str("address", address).Str("network", network).Msg("wallet connected")
	return &out, nil
}

// DisconnectWallet removes a wallet registration.
func (c *Client) DisconnectWallet(ctx context.Context, address string) error {
	body := map[string]string{"address": address}
	if err := c.post(ctx, "/api/wallet/disconnect", body, nil); err != nil {
		return err
	}
	c.log.Info().Str("address", address).Msg("wallet disconnected")
	return nil
}

// CreateSession asks the backend for a session token bound to identity.
func (c *Client) CreateSession(ctx context.Context, identity string) (string, error) {
	body := map[string]string{"identity": identity}
	var out sessionResponse
	if err := c.post(ctx, "/api/session/create", body, &out); err != nil {
		return "", err
	}
	if out.SessionToken == "" {
		return "", fmt.Errorf("api: backend returned empty session token")
	}
	return out.SessionToken, nil
}

// AnalyticsOverview fetches the platform-wide analytics summary.
func (c *Client) AnalyticsOverview(ctx context.Context) (*Overview, error) {
	var out Overview
	if err := c.get(ctx, "/api/analytics/overview", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TrendingTopics fetches the social trending feed.
func (c *Client) TrendingTopics(ctx context.Context) ([]TrendingTopic, error) {
	var out trendingResponse
	if err := c.get(ctx, "/api/social/trending-topics", nil, &out); err != nil {
		return nil, err
	}
	return out.Topics, nil
}
