// Package ebay wraps the eBay Sell APIs used to publish generated listings.
// These are thin pass-throughs over the documented REST surface; all listing
// intelligence lives in the pipeline.
package ebay

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const (
	ApiBaseUrl        = "https://api.ebay.com"
	SandboxApiBaseUrl = "https://api.sandbox.ebay.com"

	// DefaultMarketplaceID is sent as X-EBAY-C-MARKETPLACE-ID on all calls.
	DefaultMarketplaceID = "EBAY_US"
)

type ClientOpts struct {
	BaseURL       string
	MarketplaceID string
	// TokenSource supplies a valid user access token per request, refreshing
	// when needed.
	TokenSource TokenSource
}

// TokenSource supplies OAuth user access tokens.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Client struct {
	httpClient    *resty.Client
	baseURL       string
	marketplaceID string
	tokens        TokenSource
}

func NewClient(opts ClientOpts) *Client {
	c := Client{
		baseURL:       ApiBaseUrl,
		marketplaceID: DefaultMarketplaceID,
		tokens:        opts.TokenSource,
	}
	if opts.BaseURL != "" {
		c.baseURL = opts.BaseURL
	}
	if opts.MarketplaceID != "" {
		c.marketplaceID = opts.MarketplaceID
	}
	c.httpClient = resty.New().
		SetDebug(false).
		SetBaseURL(c.baseURL).
		SetHeaders(map[string]string{
			"Accept":                  "application/json",
			"Content-Type":            "application/json",
			"X-EBAY-C-MARKETPLACE-ID": c.marketplaceID,
			"Content-Language":        "en-US",
		})

	return &c
}

func (c *Client) req(ctx context.Context, result any) (*resty.Request, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	request := c.httpClient.
		NewRequest().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token)

	if result != nil {
		request.SetResult(result)
	}

	return request, nil
}

// handleError is a generic error handler for failing responses (>399 status
// code). Without this, failing responses would have nil error.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		return res, fmt.Errorf("request failed: %s %s (status: %d, body: %s)",
			res.Request.Method, res.Request.URL, res.StatusCode(), res.String())
	}

	return res, nil
}
