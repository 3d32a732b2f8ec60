package model

// AggTrade is a single aggregated trade delivered by an exchange WebSocket.
// TradeTime is epoch milliseconds.
type AggTrade struct {
	Symbol    string  `json:"s"`
	TradeTime int64   `json:"t"`
	Price     float64 `json:"p"`
	Quantity  float64 `json:"q"`
}
