package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
)

// Client is a Finnhub quote client
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	log     zerolog.Logger
}

// NewClient creates a new Finnhub client
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		client:  &http.Client{},
		baseURL: "https://finnhub.io/api/v1/quote",
		apiKey:  apiKey,
		log:     log.With().Str("client", "finnhub").Logger(),
	}
}

// NewClientWithBaseURL creates a client pointed at a custom endpoint (tests).
func NewClientWithBaseURL(baseURL, apiKey string, log zerolog.Logger) *Client {
	c := NewClient(apiKey, log)
	c.baseURL = baseURL
	return c
}

// Name identifies this provider in configuration and logs
func (c *Client) Name() string {
	return "finnhub"
}

// quoteResponse is Finnhub's quote payload; "c" is the current price.
type quoteResponse struct {
	Current   float64 `json:"c"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Open      float64 `json:"o"`
	PrevClose float64 `json:"pc"`
}

// FetchPrice fetches the current market price for a ticker. Finnhub quotes
// are always denominated in USD for US listings; the API carries no currency
// field, so USD is reported.
func (c *Client) FetchPrice(ctx context.Context, ticker string) (float64, string, error) {
	if c.apiKey == "" {
		return 0, "", fmt.Errorf("finnhub API key not configured")
	}

	params := url.Values{}
	params.Add("symbol", ticker)
	params.Add("token", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, "", fmt.Errorf("finnhub rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, "", fmt.Errorf("finnhub returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read response body: %w", err)
	}

	var quote quoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return 0, "", fmt.Errorf("failed to parse response: %w", err)
	}

	// Finnhub returns zeros for unknown symbols rather than an error
	if quote.Current <= 0 {
		return 0, "", fmt.Errorf("no valid price for %s", ticker)
	}

	c.log.Debug().Str("ticker", ticker).Float64("price", quote.Current).Msg("Quote fetched")
	return quote.Current, "USD", nil
}
