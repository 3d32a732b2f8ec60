package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"volume-screener/internal/model"
)

const (
	spotStreamBase    = "wss://stream.binance.com:9443/stream"
	futuresStreamBase = "wss://fstream.binance.com/stream"

	// Binance drops connections that do not answer pings; the server pings
	// every ~3 minutes, so a generous read deadline covers idle batches too.
	readTimeout = 5 * time.Minute

	initialReconnectDelay = 2 * time.Second
	maxReconnectDelay     = 60 * time.Second
)

// AggTradeStream is one WebSocket shard subscribed to the aggregated-trade
// combined stream for a batch of symbols. It implements model.StreamHandle.
type AggTradeStream struct {
	market  model.MarketType
	symbols []string
	handler model.TradeHandler

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	running atomic.Bool

	// OnReconnect is called after each reconnection attempt (metrics hook).
	OnReconnect func()
}

// NewAggTradeStream creates a shard for one batch of symbols. The shard does
// not connect until Start is called.
func NewAggTradeStream(market model.MarketType, symbols []string, handler model.TradeHandler) *AggTradeStream {
	return &AggTradeStream{
		market:  market,
		symbols: symbols,
		handler: handler,
	}
}

// StreamFactory returns a model.StreamFactory bound to the given market type.
func StreamFactory(market model.MarketType) model.StreamFactory {
	return func(symbols []string, handler model.TradeHandler) model.StreamHandle {
		return NewAggTradeStream(market, symbols, handler)
	}
}

// Symbols returns the batch this shard subscribes to.
func (s *AggTradeStream) Symbols() []string { return s.symbols }

// Running reports whether the shard is started.
func (s *AggTradeStream) Running() bool { return s.running.Load() }

func (s *AggTradeStream) streamURL() string {
	parts := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		parts[i] = strings.ToLower(sym) + "@aggTrade"
	}
	base := spotStreamBase
	if s.market == model.MarketFutures {
		base = futuresStreamBase
	}
	return base + "?streams=" + strings.Join(parts, "/")
}

// Start connects and delivers trades to the handler until ctx is cancelled
// or Stop is called. Disconnects are retried with exponential backoff; the
// combined-stream URL resubscribes the whole batch on every dial.
func (s *AggTradeStream) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("binance stream: already running")
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	delay := initialReconnectDelay
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		err := s.readSession(ctx)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("stream disconnected, reconnecting",
			slog.String("component", "binance.stream"),
			slog.Int("symbols", len(s.symbols)),
			slog.Duration("delay", delay),
			slog.Any("error", err))
		if s.OnReconnect != nil {
			s.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// readSession dials once and consumes messages until the connection fails.
func (s *AggTradeStream) readSession(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		trade, ok := parseAggTrade(raw)
		if !ok {
			continue
		}
		s.handler(trade)
	}
}

// Stop closes the shard. Safe to call more than once and before Start.
func (s *AggTradeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// combinedMessage is the combined-stream envelope:
// {"stream":"btcusdt@aggTrade","data":{...}}
type combinedMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		EventType string `json:"e"`
		Symbol    string `json:"s"`
		Price     string `json:"p"`
		Quantity  string `json:"q"`
		TradeTime int64  `json:"T"`
	} `json:"data"`
}

func parseAggTrade(raw []byte) (model.AggTrade, bool) {
	var msg combinedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.AggTrade{}, false
	}
	if msg.Data.EventType != "aggTrade" || msg.Data.Symbol == "" {
		return model.AggTrade{}, false
	}
	return model.AggTrade{
		Symbol:    msg.Data.Symbol,
		TradeTime: msg.Data.TradeTime,
		Price:     parseFloat(msg.Data.Price),
		Quantity:  parseFloat(msg.Data.Quantity),
	}, true
}
