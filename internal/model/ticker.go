package model

// TickerDaily is a per-symbol 24-hour statistics snapshot.
type TickerDaily struct {
	LastPrice      float64 `json:"p"`
	QuoteVolume    float64 `json:"q"`
	PriceChangePct float64 `json:"c"`
}
