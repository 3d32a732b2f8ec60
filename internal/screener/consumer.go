package screener

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"volume-screener/internal/chart"
	"volume-screener/internal/model"
	"volume-screener/internal/notify"
)

const (
	// EvalTick is the consumer evaluation cadence.
	EvalTick = time.Second

	// secondsPerDay normalizes the 24h quote volume to a per-second rate.
	secondsPerDay = 86_400

	chartInterval   = "5m"
	chartKlineLimit = 500
)

// snapshotSource is the read surface the consumer needs from the producer.
type snapshotSource interface {
	SnapshotKlines() map[string][]model.Kline
	SnapshotTickerDaily() map[string]model.TickerDaily
}

// ConsumerConfig wires the consumer to its collaborators.
type ConsumerConfig struct {
	Source   snapshotSource
	Client   model.ExchangeClient
	Notifier notify.Notifier
	Exchange model.Exchange
	Market   model.MarketType
	Settings model.Settings

	// Cooldowns is optional; a fresh in-memory tracker is used when nil.
	Cooldowns *CooldownTracker

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Consumer evaluates every symbol's volume multiplier once per EvalTick and
// dispatches a signal for each symbol over the threshold and out of cooldown.
type Consumer struct {
	cfg ConsumerConfig

	settings  atomic.Pointer[model.Settings]
	cooldowns *CooldownTracker
	counts    map[string]int // per-symbol signal counter, evaluator-owned
	now       func() time.Time
	running   atomic.Bool

	// Metrics hooks (optional, set externally before Run).
	OnSignal    func()
	OnEval      func(d time.Duration)
	OnChart     func(d time.Duration)
	OnNotifyErr func()
}

// NewConsumer creates a consumer bound to a producer snapshot source.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	c := &Consumer{
		cfg:       cfg,
		cooldowns: cfg.Cooldowns,
		counts:    make(map[string]int),
		now:       cfg.Now,
	}
	if c.cooldowns == nil {
		c.cooldowns = NewCooldownTracker()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.settings.Store(&cfg.Settings)
	return c
}

// UpdateSettings swaps the active settings. Takes effect no later than the
// next tick; a tick in flight keeps the pointer it loaded.
func (c *Consumer) UpdateSettings(s model.Settings) {
	c.settings.Store(&s)
}

// Run evaluates on a fixed tick until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.running.Store(true)
	slog.Info("consumer started", slog.Duration("tick", EvalTick))

	ticker := time.NewTicker(EvalTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !c.running.Load() {
				return nil
			}
			start := time.Now()
			c.Evaluate(ctx)
			if c.OnEval != nil {
				c.OnEval(time.Since(start))
			}
		}
	}
}

// Stop halts evaluation and closes the notifier. Idempotent.
func (c *Consumer) Stop() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	slog.Info("consumer stopped")
	return c.cfg.Notifier.Close()
}

// Evaluate runs a single evaluation tick: snapshot, score, dispatch. The
// tick's send tasks run concurrently and are awaited before returning.
func (c *Consumer) Evaluate(ctx context.Context) {
	settings := c.settings.Load()
	if !settings.IsReady() {
		return
	}

	now := c.now()
	klines := c.cfg.Source.SnapshotKlines()
	daily := c.cfg.Source.SnapshotTickerDaily()

	var wg sync.WaitGroup
	dispatched := 0
	for symbol, buf := range klines {
		if c.cooldowns.IsBlocked(symbol, now) {
			continue
		}

		td, ok := daily[symbol]
		if !ok {
			slog.Warn("ticker daily data not found", slog.String("symbol", symbol))
			continue
		}

		multiplier := VolumeMultiplier(buf, td.QuoteVolume, settings.Interval, now)
		if multiplier <= settings.MinMultiplier {
			continue
		}

		c.cooldowns.Block(symbol, time.Duration(settings.Timeout)*time.Second, now)
		c.counts[symbol]++
		count := c.counts[symbol]
		dispatched++
		if c.OnSignal != nil {
			c.OnSignal()
		}
		slog.Info("volume surge",
			slog.String("symbol", symbol),
			slog.Float64("multiplier", multiplier),
			slog.Float64("daily_quote_volume", td.QuoteVolume))

		wg.Add(1)
		go func(symbol string, multiplier float64, td model.TickerDaily, count int) {
			defer wg.Done()
			c.sendAndEnrich(ctx, *settings, symbol, multiplier, td, count)
		}(symbol, multiplier, td, count)
	}

	wg.Wait()
	if dispatched > 0 {
		slog.Info("signals dispatched", slog.Int("count", dispatched))
	}
}

// VolumeMultiplier scores a symbol: windowed per-second base volume over
// daily per-second quote volume. The base/quote mismatch is deliberate —
// the result is a unitless score MinMultiplier is calibrated against.
// Returns 0 for an empty window or non-positive inputs.
func VolumeMultiplier(klines []model.Kline, dailyQuoteVolume float64, intervalSec int, now time.Time) float64 {
	if intervalSec <= 0 || dailyQuoteVolume <= 0 {
		return 0
	}

	threshold := now.UnixMilli() - int64(intervalSec)*1000
	var windowVolume float64
	matched := false
	for i := range klines {
		if klines[i].OpenTime > threshold {
			windowVolume += klines[i].BaseVolume
			matched = true
		}
	}
	if !matched {
		return 0
	}

	perSecWindow := windowVolume / float64(intervalSec)
	perSecDaily := dailyQuoteVolume / secondsPerDay
	return perSecWindow / perSecDaily
}

// sendAndEnrich delivers the text signal, then renders a chart off the
// evaluator goroutine and attaches it to the sent message. Every failure is
// logged and the signal is never retried; the cooldown stays in place so a
// broken notifier does not cause a hot loop on the same symbol.
func (c *Consumer) sendAndEnrich(ctx context.Context, settings model.Settings, symbol string, multiplier float64, td model.TickerDaily, count int) {
	text := notify.SignalText(notify.Signal{
		Symbol:         symbol,
		Multiplier:     multiplier,
		Exchange:       c.cfg.Exchange,
		Market:         c.cfg.Market,
		DailyChangePct: td.PriceChangePct,
		DailyVolume:    td.QuoteVolume,
		Count:          count,
	})

	ref, err := c.cfg.Notifier.SendText(ctx, settings.BotToken, settings.ChatID, text)
	if err != nil || ref == nil {
		slog.Error("signal send failed", slog.String("symbol", symbol), slog.Any("error", err))
		if c.OnNotifyErr != nil {
			c.OnNotifyErr()
		}
		return
	}

	chartKlines, err := c.cfg.Client.RecentKlines(ctx, c.cfg.Market, symbol, chartInterval, chartKlineLimit)
	if err != nil || len(chartKlines) == 0 {
		slog.Error("chart klines fetch failed", slog.String("symbol", symbol), slog.Any("error", err))
		return
	}

	start := time.Now()
	png, err := chart.Render(chartKlines, symbol,
		chartKlines[0].Open, chartKlines[len(chartKlines)-1].Close, td.PriceChangePct)
	if c.OnChart != nil {
		c.OnChart(time.Since(start))
	}
	if err != nil {
		slog.Error("chart render failed", slog.String("symbol", symbol), slog.Any("error", err))
		return
	}

	if err := c.cfg.Notifier.EditMedia(ctx, settings.BotToken, settings.ChatID, ref.MessageID, png, text); err != nil {
		slog.Error("chart attach failed", slog.String("symbol", symbol), slog.Any("error", err))
		if c.OnNotifyErr != nil {
			c.OnNotifyErr()
		}
	}
}

// Cooldowns exposes the tracker for restore-at-startup wiring.
func (c *Consumer) Cooldowns() *CooldownTracker { return c.cooldowns }

// SignalCount returns how many signals have fired for a symbol.
func (c *Consumer) SignalCount(symbol string) int { return c.counts[symbol] }
