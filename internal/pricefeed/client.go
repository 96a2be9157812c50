package pricefeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the CoinGecko public API
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
)

// Source provides the current bitcoin price in USD. The HTTP client and the
// mock price store both implement it.
type Source interface {
	CurrentPrice(ctx context.Context) (decimal.Decimal, error)
}

// Client fetches the bitcoin spot price
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a price feed client. The public API allows roughly ten
// calls a minute, so calls are throttled to that.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(6*time.Second), 10),
	}
}

// Name identifies the source when prices are stored.
func (c *Client) Name() string { return "coingecko" }

// CurrentPrice returns the USD price of one bitcoin
func (c *Client) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	q := url.Values{}
	q.Set("ids", "bitcoin")
	q.Set("vs_currencies", "usd")
	endpoint := fmt.Sprintf("%s/simple/price?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price API error %d: %s", resp.StatusCode, string(body))
	}

	quote := gjson.GetBytes(body, "bitcoin.usd")
	if !quote.Exists() {
		return decimal.Zero, fmt.Errorf("price missing from response: %s", string(body))
	}

	price, err := decimal.NewFromString(quote.Raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse price %q: %w", quote.Raw, err)
	}
	return price, nil
}
