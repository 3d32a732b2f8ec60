// Package screener contains the data-plane pipeline: the Producer owns live
// per-symbol candle history built from aggregated-trade streams, the Consumer
// evaluates volume multipliers against it on a fixed tick, and the Screener
// supervisor binds the two together with hot-reloaded settings.
package screener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"volume-screener/internal/model"
	"volume-screener/internal/ringbuf"
)

const (
	// Timeframe is the candle bucket width for trade aggregation.
	Timeframe = 3 * time.Second

	// MaxHistory is the oldest retained candle age relative to the most
	// recent trade's bucket.
	MaxHistory = 15 * time.Minute

	// TickersCheckInterval is the new-symbol discovery cadence.
	TickersCheckInterval = 600 * time.Second

	// TickerDailyUpdateInterval is the 24h snapshot refresh cadence.
	TickerDailyUpdateInterval = 5 * time.Second

	// DefaultWSChunkSize is the per-connection subscription limit used for
	// exchanges without an override.
	DefaultWSChunkSize = 20

	// shardStartStagger smooths connection load on the exchange.
	shardStartStagger = 500 * time.Millisecond
)

// wsChunkSize overrides the subscription limit per exchange. Extend this
// table when onboarding an exchange with a different server-side limit.
var wsChunkSize = map[model.Exchange]int{
	model.ExchangeBingX: 30,
}

// ChunkSize returns the WS subscription batch size for an exchange.
func ChunkSize(ex model.Exchange) int {
	if n, ok := wsChunkSize[ex]; ok {
		return n
	}
	return DefaultWSChunkSize
}

// ProducerConfig wires the producer to its collaborators.
type ProducerConfig struct {
	Client   model.ExchangeClient
	Streams  model.StreamFactory
	Exchange model.Exchange
	Market   model.MarketType
}

// Producer owns the candle history and the 24h ticker snapshot. Trade
// ingestion happens on the stream shards' read goroutines; the consumer
// reads point-in-time snapshots through the accessor methods.
type Producer struct {
	cfg ProducerConfig

	klinesMu sync.Mutex
	klines   map[string]*ringbuf.Deque
	symbols  map[string]struct{}

	tickerMu    sync.RWMutex
	tickerDaily map[string]model.TickerDaily

	streamsMu sync.Mutex
	streams   []model.StreamHandle

	running atomic.Bool

	// Metrics hooks (optional, set externally before Run).
	OnTrade   func()
	OnEvicted func(count int)
	OnShard   func(active int)
}

// NewProducer creates a producer. Run starts it.
func NewProducer(cfg ProducerConfig) *Producer {
	return &Producer{
		cfg:         cfg,
		klines:      make(map[string]*ringbuf.Deque),
		symbols:     make(map[string]struct{}),
		tickerDaily: make(map[string]model.TickerDaily),
	}
}

// Run lists all symbols, opens one WS shard per batch, and keeps the
// discovery and ticker-daily loops going. Blocks until ctx is cancelled.
func (p *Producer) Run(ctx context.Context) error {
	p.running.Store(true)
	defer p.running.Store(false)

	batches, err := p.cfg.Client.SymbolsBatched(ctx, p.cfg.Market, ChunkSize(p.cfg.Exchange))
	if err != nil {
		return fmt.Errorf("producer: list symbols: %w", err)
	}

	total := 0
	for _, batch := range batches {
		for _, symbol := range batch {
			p.symbols[symbol] = struct{}{}
			total++
		}
	}
	slog.Info("producer started",
		slog.String("exchange", string(p.cfg.Exchange)),
		slog.String("market", string(p.cfg.Market)),
		slog.Int("symbols", total),
		slog.Int("shards", len(batches)))

	var wg sync.WaitGroup
	for _, batch := range batches {
		p.startShard(ctx, &wg, batch)
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-time.After(shardStartStagger):
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		p.monitorNewSymbols(ctx)
	}()
	go func() {
		defer wg.Done()
		p.updateTickerDaily(ctx)
	}()

	wg.Wait()
	return nil
}

// startShard creates and launches one WS shard for a batch of symbols.
func (p *Producer) startShard(ctx context.Context, wg *sync.WaitGroup, batch []string) {
	shard := p.cfg.Streams(batch, p.Ingest)
	p.streamsMu.Lock()
	p.streams = append(p.streams, shard)
	active := len(p.streams)
	p.streamsMu.Unlock()
	if p.OnShard != nil {
		p.OnShard(active)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := shard.Start(ctx); err != nil {
			slog.Error("shard stopped with error",
				slog.Int("symbols", len(batch)), slog.Any("error", err))
		}
	}()
}

// Ingest aggregates one trade into its symbol's candle buffer and evicts
// history past the bound. This is the hot path; the critical section does
// no I/O.
func (p *Producer) Ingest(trade model.AggTrade) {
	timeframeMs := Timeframe.Milliseconds()
	alignedOpen := (trade.TradeTime / timeframeMs) * timeframeMs

	p.klinesMu.Lock()

	buf, ok := p.klines[trade.Symbol]
	if !ok {
		// Symbols unknown to the discovery loop are accepted transparently;
		// the symbol set is advisory, not a gate.
		buf = ringbuf.New(int(MaxHistory/Timeframe) + 1)
		p.klines[trade.Symbol] = buf
	}

	last := buf.Back()
	switch {
	case last == nil:
		buf.PushBack(newKline(trade, alignedOpen))
	case trade.TradeTime >= last.OpenTime+timeframeMs:
		last.CloseTime = last.OpenTime + timeframeMs
		last.Closed = true
		buf.PushBack(newKline(trade, alignedOpen))
	default:
		// Same bucket. Late trades (TradeTime < last.OpenTime) fold into
		// the current bucket rather than back-applying.
		if trade.Price > last.High {
			last.High = trade.Price
		}
		if trade.Price < last.Low {
			last.Low = trade.Price
		}
		last.Close = trade.Price
		last.BaseVolume += trade.Quantity
		last.QuoteVolume += trade.Quantity * trade.Price
	}

	evicted := buf.EvictBefore(alignedOpen - MaxHistory.Milliseconds())
	p.klinesMu.Unlock()

	if p.OnTrade != nil {
		p.OnTrade()
	}
	if evicted > 0 && p.OnEvicted != nil {
		p.OnEvicted(evicted)
	}
}

func newKline(trade model.AggTrade, openTime int64) model.Kline {
	return model.Kline{
		Symbol:      trade.Symbol,
		OpenTime:    openTime,
		Open:        trade.Price,
		High:        trade.Price,
		Low:         trade.Price,
		Close:       trade.Price,
		BaseVolume:  trade.Quantity,
		QuoteVolume: trade.Quantity * trade.Price,
	}
}

// monitorNewSymbols periodically re-lists symbols and opens one extra shard
// for anything newly listed. Existing shards are never restarted and
// delistings are not acted upon.
func (p *Producer) monitorNewSymbols(ctx context.Context) {
	ticker := time.NewTicker(TickersCheckInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		p.discoverOnce(ctx, &wg)
	}
}

// discoverOnce runs one discovery cycle: re-list, diff against the known
// set, and open a single shard for whatever is new.
func (p *Producer) discoverOnce(ctx context.Context, wg *sync.WaitGroup) {
	batches, err := p.cfg.Client.SymbolsBatched(ctx, p.cfg.Market, ChunkSize(p.cfg.Exchange))
	if err != nil {
		slog.Error("symbol discovery failed", slog.Any("error", err))
		return
	}

	p.klinesMu.Lock()
	var fresh []string
	for _, batch := range batches {
		for _, symbol := range batch {
			if _, ok := p.symbols[symbol]; !ok {
				p.symbols[symbol] = struct{}{}
				fresh = append(fresh, symbol)
			}
		}
	}
	p.klinesMu.Unlock()

	if len(fresh) == 0 {
		return
	}
	slog.Info("new symbols detected", slog.Any("symbols", fresh))
	p.startShard(ctx, wg, fresh)
}

// updateTickerDaily refreshes the 24h snapshot on a fixed cadence. On
// failure the last-good snapshot stays in place until the next tick.
func (p *Producer) updateTickerDaily(ctx context.Context) {
	ticker := time.NewTicker(TickerDailyUpdateInterval)
	defer ticker.Stop()

	for {
		daily, err := p.cfg.Client.TickerDaily(ctx, p.cfg.Market)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("ticker daily update failed", slog.Any("error", err))
		} else {
			p.tickerMu.Lock()
			p.tickerDaily = daily
			p.tickerMu.Unlock()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SnapshotKlines returns a defensive copy of every symbol's buffer so the
// consumer can work on it after the lock is released.
func (p *Producer) SnapshotKlines() map[string][]model.Kline {
	p.klinesMu.Lock()
	defer p.klinesMu.Unlock()

	out := make(map[string][]model.Kline, len(p.klines))
	for symbol, buf := range p.klines {
		if buf.Len() > 0 {
			out[symbol] = buf.Slice()
		}
	}
	return out
}

// SnapshotTickerDaily returns a copy of the current 24h snapshot.
func (p *Producer) SnapshotTickerDaily() map[string]model.TickerDaily {
	p.tickerMu.RLock()
	defer p.tickerMu.RUnlock()

	out := make(map[string]model.TickerDaily, len(p.tickerDaily))
	for symbol, td := range p.tickerDaily {
		out[symbol] = td
	}
	return out
}

// Symbols returns the currently known symbol set.
func (p *Producer) Symbols() []string {
	p.klinesMu.Lock()
	defer p.klinesMu.Unlock()

	out := make([]string, 0, len(p.symbols))
	for symbol := range p.symbols {
		out = append(out, symbol)
	}
	return out
}

// ShardCount returns the number of shards created so far.
func (p *Producer) ShardCount() int {
	p.streamsMu.Lock()
	defer p.streamsMu.Unlock()
	return len(p.streams)
}

// Stop stops every shard, collecting errors. Individual shard failures are
// reported but do not abort the shutdown.
func (p *Producer) Stop() error {
	p.running.Store(false)

	p.streamsMu.Lock()
	shards := make([]model.StreamHandle, len(p.streams))
	copy(shards, p.streams)
	p.streamsMu.Unlock()

	var errs []error
	for _, shard := range shards {
		if err := shard.Stop(); err != nil {
			slog.Error("error while stopping shard", slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	slog.Info("producer stopped", slog.Int("shards", len(shards)))
	return errors.Join(errs...)
}
