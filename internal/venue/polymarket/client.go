// Package polymarket implements the venue client for the Polymarket Gamma
// API, which provides market discovery, metadata, and current prices.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oddsmux/oddsmux/internal/domain"
	"github.com/oddsmux/oddsmux/internal/venue"
)

// DefaultBaseURL is the Gamma API root.
const DefaultBaseURL = "https://gamma-api.polymarket.com"

// Client is the REST client for the Polymarket Gamma API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
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
		params.Set("active", "true")
		params.Set("closed", "false")
	}

	path := "/markets?" + params.Encode()

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket: list markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket: decode markets: %w", err)
	}

	markets := make([]domain.VenueMarket, 0, len(apiMarkets))
	for i := range apiMarkets {
		markets = append(markets, apiMarkets[i].ToVenueMarket())
	}

	return markets, nil
}

// GetMarket returns a single market by its Gamma ID.
func (c *Client) GetMarket(ctx context.Context, externalID string) (domain.VenueMarket, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(externalID))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return domain.VenueMarket{}, fmt.Errorf("polymarket: get market %s: %w", externalID, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return domain.VenueMarket{}, fmt.Errorf("polymarket: decode market: %w", err)
	}

	return apiMarket.ToVenueMarket(), nil
}

// GetPrices returns the current quote for one market. Gamma answers 404 for
// markets that were delisted from the catalog; closed markets are still
// served with closed=true, which is the resolved signal for this venue.
func (c *Client) GetPrices(ctx context.Context, externalID string) (domain.PricePair, error) {
	m, err := c.GetMarket(ctx, externalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PricePair{}, fmt.Errorf("polymarket: market %s: %w", externalID, domain.ErrMarketDelisted)
		}
		return domain.PricePair{}, err
	}
	if m.Resolved {
		return domain.PricePair{}, fmt.Errorf("polymarket: market %s: %w", externalID, domain.ErrMarketResolved)
	}
	return domain.PricePair{Yes: m.YesPrice, No: m.NoPrice}, nil
}

// HealthCheck probes the Gamma API with a one-row listing.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.doGet(ctx, "/markets?limit=1"); err != nil {
		return fmt.Errorf("polymarket: health check: %w", err)
	}
	return nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
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
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
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
