package model

import "fmt"

// Exchange identifies the exchange the screener runs against.
type Exchange string

const (
	ExchangeBinance Exchange = "binance"
	ExchangeBingX   Exchange = "bingx"
)

// MarketType selects the market segment (spot or perpetual futures).
type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
)

// ParseMarketType validates a market type string from configuration.
// An unsupported value is a configuration error and must refuse startup.
func ParseMarketType(s string) (MarketType, error) {
	switch MarketType(s) {
	case MarketSpot, MarketFutures:
		return MarketType(s), nil
	default:
		return "", fmt.Errorf("unsupported market type: %q", s)
	}
}
