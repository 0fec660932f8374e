package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
)

// Client is a Yahoo Finance quote client
type Client struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client. The HTTP client carries no
// timeout of its own; callers bound each fetch through the request context.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client:  &http.Client{},
		baseURL: "https://query1.finance.yahoo.com/v7/finance/quote",
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// NewClientWithBaseURL creates a client pointed at a custom endpoint (tests).
func NewClientWithBaseURL(baseURL string, log zerolog.Logger) *Client {
	c := NewClient(log)
	c.baseURL = baseURL
	return c
}

// Name identifies this provider in configuration and logs
func (c *Client) Name() string {
	return "yahoo"
}

// quoteResponse represents the response from the Yahoo Finance quote API
type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string   `json:"symbol"`
			RegularMarketPrice *float64 `json:"regularMarketPrice"`
			Currency           string   `json:"currency"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// FetchPrice fetches the current market price for a ticker
func (c *Client) FetchPrice(ctx context.Context, ticker string) (float64, string, error) {
	params := url.Values{}
	params.Add("symbols", ticker)
	params.Add("fields", "symbol,regularMarketPrice,currency")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}

	// Yahoo rejects requests without a browser-ish user agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, "", fmt.Errorf("yahoo returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read response body: %w", err)
	}

	var result quoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, "", fmt.Errorf("failed to parse response: %w", err)
	}

	if result.QuoteResponse.Error != nil {
		return 0, "", fmt.Errorf("yahoo API error: %v", result.QuoteResponse.Error)
	}
	if len(result.QuoteResponse.Result) == 0 {
		return 0, "", fmt.Errorf("no quote data returned for %s", ticker)
	}

	quote := result.QuoteResponse.Result[0]
	if quote.RegularMarketPrice == nil || *quote.RegularMarketPrice <= 0 {
		return 0, "", fmt.Errorf("no valid price for %s", ticker)
	}

	currency := quote.Currency
	if currency == "" {
		currency = "USD"
	}

	c.log.Debug().Str("ticker", ticker).Float64("price", *quote.RegularMarketPrice).Msg("Quote fetched")
	return *quote.RegularMarketPrice, currency, nil
}
