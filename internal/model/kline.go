package model

import "encoding/json"

// Kline is one timeframe bucket for a single symbol, aggregated from trades.
// Times are epoch milliseconds. CloseTime is 0 while the bucket is still
// forming and is set to OpenTime+timeframe when the bucket rolls over.
type Kline struct {
	Symbol      string  `json:"s"`
	OpenTime    int64   `json:"t"`
	CloseTime   int64   `json:"T"`
	Open        float64 `json:"o"`
	High        float64 `json:"h"`
	Low         float64 `json:"l"`
	Close       float64 `json:"c"`
	BaseVolume  float64 `json:"v"`
	QuoteVolume float64 `json:"q"`
	Closed      bool    `json:"x"`
}

// JSON returns the JSON-encoded kline (ignoring errors for hot-path usage).
func (k *Kline) JSON() []byte {
	b, _ := json.Marshal(k)
	return b
}
