// Package binance implements the exchange collaborator contracts against the
// Binance spot and USD-M futures APIs: REST for symbol discovery, 24h ticker
// statistics and chart klines, and combined-stream WebSocket shards for
// aggregated trades.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"volume-screener/internal/model"
)

const (
	spotAPIBase    = "https://api.binance.com"
	futuresAPIBase = "https://fapi.binance.com"

	defaultHTTPTimeout = 15 * time.Second
)

// Client is the Binance REST client. It implements model.ExchangeClient.
type Client struct {
	http *http.Client

	// baseOverride points every request at a test server when set.
	baseOverride string
}

// NewClient creates a Binance REST client using public (unauthenticated)
// market data endpoints.
func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (c *Client) base(market model.MarketType) string {
	if c.baseOverride != "" {
		return c.baseOverride
	}
	if market == model.MarketFutures {
		return futuresAPIBase
	}
	return spotAPIBase
}

func apiPrefix(market model.MarketType) string {
	if market == model.MarketFutures {
		return "/fapi/v1"
	}
	return "/api/v3"
}

// SymbolsBatched lists all TRADING symbols and partitions them into batches
// of at most batchSize, the per-connection WS subscription limit.
func (c *Client) SymbolsBatched(ctx context.Context, market model.MarketType, batchSize int) ([][]string, error) {
	var info struct {
		Symbols []struct {
			Symbol string `json:"symbol"`
			Status string `json:"status"`
		} `json:"symbols"`
	}
	if err := c.getJSON(ctx, c.base(market)+apiPrefix(market)+"/exchangeInfo", &info); err != nil {
		return nil, fmt.Errorf("binance: exchange info: %w", err)
	}

	if batchSize <= 0 {
		batchSize = 20
	}
	var batches [][]string
	var batch []string
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		batch = append(batch, s.Symbol)
		if len(batch) == batchSize {
			batches = append(batches, batch)
			batch = nil
		}
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}
	return batches, nil
}

// TickerDaily fetches 24h statistics for every symbol in one call.
func (c *Client) TickerDaily(ctx context.Context, market model.MarketType) (map[string]model.TickerDaily, error) {
	var rows []struct {
		Symbol         string `json:"symbol"`
		LastPrice      string `json:"lastPrice"`
		PriceChangePct string `json:"priceChangePercent"`
		QuoteVolume    string `json:"quoteVolume"`
	}
	if err := c.getJSON(ctx, c.base(market)+apiPrefix(market)+"/ticker/24hr", &rows); err != nil {
		return nil, fmt.Errorf("binance: ticker 24hr: %w", err)
	}

	out := make(map[string]model.TickerDaily, len(rows))
	for _, r := range rows {
		out[r.Symbol] = model.TickerDaily{
			LastPrice:      parseFloat(r.LastPrice),
			QuoteVolume:    parseFloat(r.QuoteVolume),
			PriceChangePct: parseFloat(r.PriceChangePct),
		}
	}
	return out, nil
}

// RecentKlines fetches up to limit klines for the given interval string
// (e.g. "5m"). Binance returns arrays of mixed types per kline.
func (c *Client) RecentKlines(ctx context.Context, market model.MarketType, symbol, interval string, limit int) ([]model.Kline, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var raw [][]json.RawMessage
	endpoint := c.base(market) + apiPrefix(market) + "/klines?" + q.Encode()
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("binance: klines %s: %w", symbol, err)
	}

	klines := make([]model.Kline, 0, len(raw))
	for _, row := range raw {
		// [openTime, open, high, low, close, volume, closeTime, quoteVolume, ...]
		if len(row) < 8 {
			continue
		}
		var openTime, closeTime int64
		var o, h, l, cl, v, qv string
		json.Unmarshal(row[0], &openTime)
		json.Unmarshal(row[1], &o)
		json.Unmarshal(row[2], &h)
		json.Unmarshal(row[3], &l)
		json.Unmarshal(row[4], &cl)
		json.Unmarshal(row[5], &v)
		json.Unmarshal(row[6], &closeTime)
		json.Unmarshal(row[7], &qv)

		klines = append(klines, model.Kline{
			Symbol:      symbol,
			OpenTime:    openTime,
			CloseTime:   closeTime,
			Open:        parseFloat(o),
			High:        parseFloat(h),
			Low:         parseFloat(l),
			Close:       parseFloat(cl),
			BaseVolume:  parseFloat(v),
			QuoteVolume: parseFloat(qv),
			Closed:      true,
		})
	}
	return klines, nil
}

// Close releases idle HTTP connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
