// Package kalshi implements the venue client for the Kalshi exchange API.
// Prices on Kalshi are quoted in cents (1-99) and normalized to dollars
// here; market identity is the exchange ticker.
package kalshi

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

// DefaultBaseURL is the Kalshi trade API root.
const DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

// Client is the REST client for the Kalshi exchange API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Kalshi REST client. apiKey may be empty for the
// public market-data endpoints; authenticated endpoints require it.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
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
		params.Set("status", "open")
	}

	path := "/markets?" + params.Encode()

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("kalshi: get markets: %w", err)
	}

	var resp marketsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode markets: %w", err)
	}

	markets := make([]domain.VenueMarket, 0, len(resp.Markets))
	for i := range resp.Markets {
		markets = append(markets, resp.Markets[i].ToVenueMarket())
	}

	return markets, nil
}

// GetMarket returns a single market by its ticker.
func (c *Client) GetMarket(ctx context.Context, externalID string) (domain.VenueMarket, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(externalID))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return domain.VenueMarket{}, fmt.Errorf("kalshi: get market %s: %w", externalID, err)
	}

	var resp marketResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.VenueMarket{}, fmt.Errorf("kalshi: decode market: %w", err)
	}

	return resp.Market.ToVenueMarket(), nil
}

// GetPrices returns the current quote for one market. Kalshi answers 404
// for tickers removed from the exchange and 400 when quoting a market that
// already settled; the latter is an expected lifecycle signal, not a fault.
func (c *Client) GetPrices(ctx context.Context, externalID string) (domain.PricePair, error) {
	m, err := c.GetMarket(ctx, externalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PricePair{}, fmt.Errorf("kalshi: market %s: %w", externalID, domain.ErrMarketDelisted)
		}
		return domain.PricePair{}, err
	}
	return domain.PricePair{Yes: m.YesPrice, No: m.NoPrice}, nil
}

// HealthCheck probes the exchange status endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.doGet(ctx, "/exchange/status"); err != nil {
		return fmt.Errorf("kalshi: health check: %w", err)
	}
	return nil
}

// doGet sends a GET request with the API key header when configured.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("KALSHI-ACCESS-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors. The 400
// branch carries domain.ErrMarketResolved: Kalshi rejects quote requests
// for settled markets with a bad-request error rather than a 404.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr ErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s (%s)", domain.ErrNotFound, apiErr.Message, apiErr.Code)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s (%s)", domain.ErrMarketResolved, apiErr.Message, apiErr.Code)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s (%s)", domain.ErrUnauthorized, apiErr.Message, apiErr.Code)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s (%s)", domain.ErrRateLimited, apiErr.Message, apiErr.Code)
	default:
		return fmt.Errorf("HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}

// Compile-time interface check.
var _ venue.Client = (*Client)(nil)
