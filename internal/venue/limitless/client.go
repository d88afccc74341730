// Package limitless implements the venue client for the Limitless Exchange
// API. Limitless settles on Base and quotes outcome prices as percentages;
// markets removed after resolution answer 410 Gone rather than 404.
package limitless

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oddsmux/oddsmux/internal/domain"
	"github.com/oddsmux/oddsmux/internal/venue"
)

// DefaultBaseURL is the Limitless API root.
const DefaultBaseURL = "https://api.limitless.exchange"

// Client is the REST client for the Limitless Exchange API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Limitless API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListMarkets returns one page of markets.
func (c *Client) ListMarkets(ctx context.Context, q venue.MarketQuery) ([]domain.VenueMarket, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	if q.ActiveOnly {
		params.Set("status", "active")
	}

	path := "/markets?" + params.Encode()

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("limitless: list markets: %w", err)
	}

	var resp marketsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("limitless: decode markets: %w", err)
	}

	markets := make([]domain.VenueMarket, 0, len(resp.Markets))
	for i := range resp.Markets {
		markets = append(markets, resp.Markets[i].ToVenueMarket())
	}

	return markets, nil
}

// GetMarket returns a single market by its address.
func (c *Client) GetMarket(ctx context.Context, externalID string) (domain.VenueMarket, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(externalID))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return domain.VenueMarket{}, fmt.Errorf("limitless: get market %s: %w", externalID, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return domain.VenueMarket{}, fmt.Errorf("limitless: decode market: %w", err)
	}

	return apiMarket.ToVenueMarket(), nil
}

// GetPrices returns the current quote for one market. The delisted signal
// for this venue is the 410 mapped in checkHTTPStatus; expired markets are
// still served and carry the resolved signal in the body.
func (c *Client) GetPrices(ctx context.Context, externalID string) (domain.PricePair, error) {
	m, err := c.GetMarket(ctx, externalID)
	if err != nil {
		return domain.PricePair{}, err
	}
	if m.Resolved {
		return domain.PricePair{}, fmt.Errorf("limitless: market %s: %w", externalID, domain.ErrMarketResolved)
	}
	return domain.PricePair{Yes: m.YesPrice, No: m.NoPrice}, nil
}

// HealthCheck probes the API with a one-row listing.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.doGet(ctx, "/markets?limit=1"); err != nil {
		return fmt.Errorf("limitless: health check: %w", err)
	}
	return nil
}

// doGet sends an unauthenticated GET request to the Limitless API.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
// 410 means the market was purged after resolution, which is this venue's
// delisted signal; a plain 404 is an unknown address.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusGone:
		return fmt.Errorf("%w: %s", domain.ErrMarketDelisted, bodyStr)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// Compile-time interface check.
var _ venue.Client = (*Client)(nil)
