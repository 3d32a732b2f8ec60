package screener

import (
	"context"
	"sync"
	"testing"
	"time"

	"volume-screener/internal/model"
)

// fakeClient implements model.ExchangeClient for pipeline tests.
type fakeClient struct {
	mu      sync.Mutex
	batches [][]string
	daily   map[string]model.TickerDaily
	klines  []model.Kline
}

func (f *fakeClient) SymbolsBatched(ctx context.Context, market model.MarketType, batchSize int) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches, nil
}

func (f *fakeClient) setBatches(batches [][]string) {
	f.mu.Lock()
	f.batches = batches
	f.mu.Unlock()
}

func (f *fakeClient) TickerDaily(ctx context.Context, market model.MarketType) (map[string]model.TickerDaily, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.daily, nil
}

func (f *fakeClient) RecentKlines(ctx context.Context, market model.MarketType, symbol, interval string, limit int) ([]model.Kline, error) {
	return f.klines, nil
}

func (f *fakeClient) Close() error { return nil }

// fakeStream implements model.StreamHandle and records its batch.
type fakeStream struct {
	symbols []string
	started bool
}

func (s *fakeStream) Start(ctx context.Context) error {
	s.started = true
	<-ctx.Done()
	return nil
}

func (s *fakeStream) Stop() error       { return nil }
func (s *fakeStream) Running() bool     { return s.started }
func (s *fakeStream) Symbols() []string { return s.symbols }

func trade(symbol string, t int64, price, qty float64) model.AggTrade {
	return model.AggTrade{Symbol: symbol, TradeTime: t, Price: price, Quantity: qty}
}

func newTestProducer(client *fakeClient, created *[]*fakeStream) *Producer {
	var mu sync.Mutex
	return NewProducer(ProducerConfig{
		Client: client,
		Streams: func(symbols []string, handler model.TradeHandler) model.StreamHandle {
			s := &fakeStream{symbols: symbols}
			if created != nil {
				mu.Lock()
				*created = append(*created, s)
				mu.Unlock()
			}
			return s
		},
		Exchange: model.ExchangeBinance,
		Market:   model.MarketFutures,
	})
}

func TestIngestSingleBucket(t *testing.T) {
	p := newTestProducer(&fakeClient{}, nil)

	p.Ingest(trade("S1", 1000, 10, 1))
	p.Ingest(trade("S1", 1500, 12, 2))
	p.Ingest(trade("S1", 2999, 8, 3))

	klines := p.SnapshotKlines()["S1"]
	if len(klines) != 1 {
		t.Fatalf("expected 1 kline, got %d", len(klines))
	}
	k := klines[0]
	if k.OpenTime != 0 {
		t.Errorf("open_time = %d, want 0", k.OpenTime)
	}
	if k.Open != 10 || k.High != 12 || k.Low != 8 || k.Close != 8 {
		t.Errorf("ohlc = %v/%v/%v/%v, want 10/12/8/8", k.Open, k.High, k.Low, k.Close)
	}
	if k.BaseVolume != 6 {
		t.Errorf("base_volume = %v, want 6", k.BaseVolume)
	}
	if k.QuoteVolume != 58 {
		t.Errorf("quote_volume = %v, want 58", k.QuoteVolume)
	}
	if k.Closed {
		t.Error("candle should still be open")
	}
}

func TestIngestRollover(t *testing.T) {
	p := newTestProducer(&fakeClient{}, nil)

	p.Ingest(trade("S1", 1000, 10, 1))
	p.Ingest(trade("S1", 1500, 12, 2))
	p.Ingest(trade("S1", 2999, 8, 3))
	p.Ingest(trade("S1", 3100, 11, 1))

	klines := p.SnapshotKlines()["S1"]
	if len(klines) != 2 {
		t.Fatalf("expected 2 klines, got %d", len(klines))
	}

	prev := klines[0]
	if !prev.Closed {
		t.Error("previous candle should be finalized")
	}
	if prev.CloseTime != 3000 {
		t.Errorf("close_time = %d, want 3000", prev.CloseTime)
	}

	cur := klines[1]
	if cur.OpenTime != 3000 {
		t.Errorf("open_time = %d, want 3000", cur.OpenTime)
	}
	if cur.Open != 11 || cur.High != 11 || cur.Low != 11 || cur.Close != 11 {
		t.Errorf("ohlc = %v/%v/%v/%v, want all 11", cur.Open, cur.High, cur.Low, cur.Close)
	}
	if cur.BaseVolume != 1 || cur.QuoteVolume != 11 {
		t.Errorf("volumes = %v/%v, want 1/11", cur.BaseVolume, cur.QuoteVolume)
	}
}

func TestIngestLateTradeFoldsIntoCurrent(t *testing.T) {
	p := newTestProducer(&fakeClient{}, nil)

	p.Ingest(trade("S1", 6000, 10, 1))
	p.Ingest(trade("S1", 4000, 20, 1)) // behind the current bucket

	klines := p.SnapshotKlines()["S1"]
	if len(klines) != 1 {
		t.Fatalf("expected 1 kline, got %d", len(klines))
	}
	k := klines[0]
	if k.OpenTime != 6000 {
		t.Errorf("open_time = %d, want 6000", k.OpenTime)
	}
	if k.High != 20 || k.Close != 20 || k.BaseVolume != 2 {
		t.Errorf("late trade not folded in: %+v", k)
	}
}

func TestIngestEviction(t *testing.T) {
	p := newTestProducer(&fakeClient{}, nil)

	evicted := 0
	p.OnEvicted = func(n int) { evicted += n }

	tf := Timeframe.Milliseconds()
	maxKlines := int(MaxHistory/Timeframe) + 1

	// Over 20 minutes of trades, one per bucket.
	end := (20 * time.Minute).Milliseconds()
	for ts := int64(0); ts < end; ts += tf {
		p.Ingest(trade("S1", ts, 100, 1))
	}

	klines := p.SnapshotKlines()["S1"]
	if len(klines) > maxKlines {
		t.Fatalf("history unbounded: %d klines, want <= %d", len(klines), maxKlines)
	}
	if evicted == 0 {
		t.Error("expected evictions after exceeding max history")
	}

	oldest := klines[0].OpenTime
	newest := klines[len(klines)-1].OpenTime
	if newest-oldest > MaxHistory.Milliseconds() {
		t.Errorf("oldest kline too old: span %d ms", newest-oldest)
	}
	for i := 1; i < len(klines); i++ {
		if klines[i].OpenTime <= klines[i-1].OpenTime {
			t.Fatalf("open times not strictly increasing at %d", i)
		}
	}
}

func TestSnapshotIsDefensiveCopy(t *testing.T) {
	p := newTestProducer(&fakeClient{}, nil)
	p.Ingest(trade("S1", 1000, 10, 1))

	snap := p.SnapshotKlines()["S1"]
	snap[0].Close = 999

	if got := p.SnapshotKlines()["S1"][0].Close; got == 999 {
		t.Fatal("snapshot aliases internal state")
	}
}

func TestDiscoverOnce(t *testing.T) {
	client := &fakeClient{batches: [][]string{{"A", "B"}}}
	var created []*fakeStream
	p := newTestProducer(client, &created)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	p.discoverOnce(ctx, &wg)
	if got := p.ShardCount(); got != 1 {
		t.Fatalf("shards after startup = %d, want 1", got)
	}

	// Second cycle returns one extra symbol.
	client.setBatches([][]string{{"A", "B", "C"}})
	p.discoverOnce(ctx, &wg)

	if got := p.ShardCount(); got != 2 {
		t.Fatalf("shards after discovery = %d, want 2", got)
	}
	fresh := created[len(created)-1]
	if len(fresh.symbols) != 1 || fresh.symbols[0] != "C" {
		t.Errorf("new shard symbols = %v, want [C]", fresh.symbols)
	}

	symbols := p.Symbols()
	if len(symbols) != 3 {
		t.Errorf("symbol set = %v, want {A,B,C}", symbols)
	}

	// Re-listing the same set must not create another shard.
	p.discoverOnce(ctx, &wg)
	if got := p.ShardCount(); got != 2 {
		t.Errorf("shards after no-op discovery = %d, want 2", got)
	}

	cancel()
	wg.Wait()
}
