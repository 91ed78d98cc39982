// Package polymarket is a thin HTTP client for the public Polymarket
// APIs: Gamma for market metadata and the Data API for per-wallet
// positions and trades. Upstream encodes numerics as strings; callers
// parse them into decimals during sync.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Default API endpoints.
const (
	DefaultGammaURL = "https://gamma-api.polymarket.com"
	DefaultDataURL  = "https://data-api.polymarket.com"
)

// Client talks to the Polymarket HTTP APIs. It does not retry; transient
// failures surface to the caller.
type Client struct {
	gammaURL string
	dataURL  string
	http     *http.Client
}

// NewClient creates a Polymarket API client. Empty URLs fall back to the
// public endpoints.
func NewClient(gammaURL, dataURL string) *Client {
	if gammaURL == "" {
		gammaURL = DefaultGammaURL
	}
	if dataURL == "" {
		dataURL = DefaultDataURL
	}
	return &Client{
		gammaURL: gammaURL,
		dataURL:  dataURL,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Market is one market as returned by the Gamma API.
type Market struct {
	ConditionID string `json:"condition_id"`
	Question    string `json:"question"`
	Category    string `json:"category"`
	Volume      string `json:"volume"`
	Liquidity   string `json:"liquidity"`
	Active      bool   `json:"active"`
	EndDateISO  string `json:"end_date_iso"`
}

// Position is one wallet position as returned by the Data API.
type Position struct {
	Market       string `json:"market"` // condition ID
	Outcome      string `json:"outcome"`
	Size         string `json:"size"`
	AveragePrice string `json:"average_price"`
	CurrentPrice string `json:"current_price"`
}

// Trade is one fill as returned by the Data API.
type Trade struct {
	Market          string `json:"market"` // condition ID
	Side            string `json:"side"`
	Outcome         string `json:"outcome"`
	Size            string `json:"size"`
	Price           string `json:"price"`
	Timestamp       int64  `json:"timestamp"` // unix seconds
	TransactionHash string `json:"transaction_hash"`
}

// GetMarkets fetches up to limit active markets from the Gamma API.
func (c *Client) GetMarkets(ctx context.Context, limit int) ([]Market, error) {
	url := c.gammaURL + "/markets?active=true&limit=" + strconv.Itoa(limit)
	var markets []Market
	if err := c.getJSON(ctx, url, &markets); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}
	return markets, nil
}

// GetUserPositions fetches all positions for a wallet address.
func (c *Client) GetUserPositions(ctx context.Context, address string) ([]Position, error) {
	var positions []Position
	if err := c.getJSON(ctx, c.dataURL+"/positions/"+address, &positions); err != nil {
		return nil, fmt.Errorf("get positions for %s: %w", address, err)
	}
	return positions, nil
}

// GetUserTrades fetches up to limit recent fills for a wallet address.
func (c *Client) GetUserTrades(ctx context.Context, address string, limit int) ([]Trade, error) {
	url := c.dataURL + "/trades/" + address + "?limit=" + strconv.Itoa(limit)
	var trades []Trade
	if err := c.getJSON(ctx, url, &trades); err != nil {
		return nil, fmt.Errorf("get trades for %s: %w", address, err)
	}
	return trades, nil
}

func (c *Client) getJSON(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
