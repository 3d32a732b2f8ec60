package model

import "context"

// ── Collaborator Port Interfaces ──
// These interfaces decouple the screener pipeline from concrete
// implementations (Binance REST/WS, Postgres/SQLite settings store).
// Each implementation satisfies one or more of these interfaces.

// TradeHandler is invoked by a stream shard for every aggregated trade.
type TradeHandler func(trade AggTrade)

// StreamHandle is one WebSocket shard subscribed to a batch of symbols.
type StreamHandle interface {
	// Start connects and begins delivering trades to the handler.
	// Blocks until ctx is cancelled or the connection is given up on.
	Start(ctx context.Context) error

	// Stop closes the connection. Safe to call more than once.
	Stop() error

	// Running reports whether the shard is currently started.
	Running() bool

	// Symbols returns the batch this shard subscribes to.
	Symbols() []string
}

// StreamFactory creates a shard for one batch of symbols.
type StreamFactory func(symbols []string, handler TradeHandler) StreamHandle

// ExchangeClient is the REST surface the screener needs from an exchange.
type ExchangeClient interface {
	// SymbolsBatched lists all tradeable symbols partitioned into batches
	// no larger than the exchange's per-connection subscription limit.
	SymbolsBatched(ctx context.Context, market MarketType, batchSize int) ([][]string, error)

	// TickerDaily fetches the full 24h statistics map.
	TickerDaily(ctx context.Context, market MarketType) (map[string]TickerDaily, error)

	// RecentKlines fetches up to limit recent klines for charting.
	// interval is an exchange interval string such as "5m".
	RecentKlines(ctx context.Context, market MarketType, symbol, interval string, limit int) ([]Kline, error)

	// Close releases underlying resources.
	Close() error
}

// SettingsStore reads the single screener settings record.
type SettingsStore interface {
	// CreateIfAbsent inserts the default settings row if none exists.
	// Called once at startup.
	CreateIfAbsent(ctx context.Context) error

	// Get returns the settings row (id=1).
	Get(ctx context.Context) (Settings, error)

	// Close releases underlying resources.
	Close() error
}
