package screener

import (
	"context"
	"sync"
	"testing"
	"time"

	"volume-screener/internal/model"
	"volume-screener/internal/notify"
)

// fakeSource feeds the consumer fixed snapshots.
type fakeSource struct {
	klines map[string][]model.Kline
	daily  map[string]model.TickerDaily
}

func (f *fakeSource) SnapshotKlines() map[string][]model.Kline {
	return f.klines
}

func (f *fakeSource) SnapshotTickerDaily() map[string]model.TickerDaily {
	return f.daily
}

// fakeNotifier records deliveries.
type fakeNotifier struct {
	mu    sync.Mutex
	sends []string
	edits int
}

func (n *fakeNotifier) SendText(ctx context.Context, token string, chatID int64, text string) (*notify.MessageRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, text)
	return &notify.MessageRef{ChatID: chatID, MessageID: int64(len(n.sends))}, nil
}

func (n *fakeNotifier) EditMedia(ctx context.Context, token string, chatID int64, messageID int64, photo []byte, caption string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.edits++
	return nil
}

func (n *fakeNotifier) Close() error { return nil }

func (n *fakeNotifier) sendCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

func (n *fakeNotifier) editCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.edits
}

func readySettings() model.Settings {
	return model.Settings{
		ID:            1,
		Interval:      60,
		MinMultiplier: 50,
		Timeout:       60,
		ChatID:        7,
		BotToken:      "token",
	}
}

// burstKlines builds a window whose multiplier works out to exactly
// windowVolume/interval against a daily quote volume of 86400 (1 unit/sec).
func burstKlines(now time.Time, baseVolume float64) []model.Kline {
	return []model.Kline{{
		Symbol:     "S1",
		OpenTime:   now.UnixMilli() - 1000,
		Open:       10, High: 10, Low: 10, Close: 10,
		BaseVolume: baseVolume,
	}}
}

func chartFixture() []model.Kline {
	out := make([]model.Kline, 0, 30)
	for i := 0; i < 30; i++ {
		out = append(out, model.Kline{
			Symbol:   "S1",
			OpenTime: int64(i) * 300_000,
			Open:     10, High: 11, Low: 9, Close: 10.5,
			BaseVolume: 5,
			Closed:     true,
		})
	}
	return out
}

func TestVolumeMultiplier(t *testing.T) {
	now := time.UnixMilli(100_000)

	klines := []model.Kline{
		{OpenTime: 39_000, BaseVolume: 1000}, // at/behind threshold, excluded
		{OpenTime: 42_000, BaseVolume: 120},
		{OpenTime: 99_000, BaseVolume: 0},
	}
	// threshold = 100000 - 60000 = 40000; window volume = 120.
	// per-sec window = 2; per-sec daily = 86400/86400 = 1.
	got := VolumeMultiplier(klines, 86_400, 60, now)
	if got != 2 {
		t.Errorf("multiplier = %v, want 2", got)
	}

	// Same inputs, same output.
	if again := VolumeMultiplier(klines, 86_400, 60, now); again != got {
		t.Errorf("multiplier not deterministic: %v vs %v", got, again)
	}
}

func TestVolumeMultiplierZeroCases(t *testing.T) {
	now := time.UnixMilli(100_000)
	klines := []model.Kline{{OpenTime: 99_000, BaseVolume: 10}}

	if got := VolumeMultiplier(nil, 86_400, 60, now); got != 0 {
		t.Errorf("empty window: got %v, want 0", got)
	}
	if got := VolumeMultiplier(klines, 0, 60, now); got != 0 {
		t.Errorf("zero daily volume: got %v, want 0", got)
	}
	if got := VolumeMultiplier(klines, -1, 60, now); got != 0 {
		t.Errorf("negative daily volume: got %v, want 0", got)
	}
	if got := VolumeMultiplier(klines, 86_400, 0, now); got != 0 {
		t.Errorf("zero interval: got %v, want 0", got)
	}

	// All klines at or behind the threshold.
	stale := []model.Kline{{OpenTime: 40_000, BaseVolume: 10}, {OpenTime: 10_000, BaseVolume: 10}}
	if got := VolumeMultiplier(stale, 86_400, 60, now); got != 0 {
		t.Errorf("stale window: got %v, want 0", got)
	}
}

func TestEvaluateThresholdAndCooldown(t *testing.T) {
	base := time.UnixMilli(1_000_000)
	now := base
	var nowMu sync.Mutex
	clock := func() time.Time {
		nowMu.Lock()
		defer nowMu.Unlock()
		return now
	}
	setNow := func(t time.Time) {
		nowMu.Lock()
		now = t
		nowMu.Unlock()
	}

	notifier := &fakeNotifier{}
	// 4500 base units over 60s against 1 unit/sec daily → multiplier 75.
	source := &fakeSource{
		klines: map[string][]model.Kline{"S1": burstKlines(base, 4500)},
		daily:  map[string]model.TickerDaily{"S1": {QuoteVolume: 86_400, PriceChangePct: 5}},
	}

	c := NewConsumer(ConsumerConfig{
		Source:   source,
		Client:   &fakeClient{klines: chartFixture()},
		Notifier: notifier,
		Exchange: model.ExchangeBinance,
		Market:   model.MarketFutures,
		Settings: readySettings(),
		Now:      clock,
	})

	ctx := context.Background()

	// Tick 1: fires.
	c.Evaluate(ctx)
	if got := notifier.sendCount(); got != 1 {
		t.Fatalf("tick 1: sends = %d, want 1", got)
	}
	if got := notifier.editCount(); got != 1 {
		t.Errorf("tick 1: chart edits = %d, want 1", got)
	}
	if got := c.SignalCount("S1"); got != 1 {
		t.Errorf("tick 1: signal count = %d, want 1", got)
	}

	// Tick 2 at t+1s with identical inputs: cooldown holds.
	setNow(base.Add(time.Second))
	source.klines["S1"] = burstKlines(clock(), 4500)
	c.Evaluate(ctx)
	if got := notifier.sendCount(); got != 1 {
		t.Fatalf("tick 2: sends = %d, want 1 (cooldown)", got)
	}

	// Tick at t+61s: cooldown expired, fires again.
	setNow(base.Add(61 * time.Second))
	source.klines["S1"] = burstKlines(clock(), 4500)
	c.Evaluate(ctx)
	if got := notifier.sendCount(); got != 2 {
		t.Fatalf("tick 3: sends = %d, want 2", got)
	}
	if got := c.SignalCount("S1"); got != 2 {
		t.Errorf("tick 3: signal count = %d, want 2", got)
	}
}

func TestEvaluateBelowThreshold(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	notifier := &fakeNotifier{}
	source := &fakeSource{
		// Multiplier 30, under the threshold of 50.
		klines: map[string][]model.Kline{"S1": burstKlines(now, 1800)},
		daily:  map[string]model.TickerDaily{"S1": {QuoteVolume: 86_400}},
	}

	c := NewConsumer(ConsumerConfig{
		Source:   source,
		Client:   &fakeClient{},
		Notifier: notifier,
		Settings: readySettings(),
		Now:      func() time.Time { return now },
	})

	c.Evaluate(context.Background())
	if got := notifier.sendCount(); got != 0 {
		t.Fatalf("sends = %d, want 0", got)
	}
}

func TestEvaluateMissingDailySkips(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	notifier := &fakeNotifier{}
	source := &fakeSource{
		klines: map[string][]model.Kline{"S1": burstKlines(now, 4500)},
		daily:  map[string]model.TickerDaily{}, // S1 absent
	}

	c := NewConsumer(ConsumerConfig{
		Source:   source,
		Client:   &fakeClient{},
		Notifier: notifier,
		Settings: readySettings(),
		Now:      func() time.Time { return now },
	})

	c.Evaluate(context.Background())
	if got := notifier.sendCount(); got != 0 {
		t.Fatalf("sends = %d, want 0", got)
	}
	if c.Cooldowns().Len() != 0 {
		t.Error("no cooldown should be set for a skipped symbol")
	}
}

func TestEvaluateSettingsNotReady(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	notifier := &fakeNotifier{}
	source := &fakeSource{
		klines: map[string][]model.Kline{"S1": burstKlines(now, 4500)},
		daily:  map[string]model.TickerDaily{"S1": {QuoteVolume: 86_400}},
	}

	settings := readySettings()
	settings.BotToken = ""

	c := NewConsumer(ConsumerConfig{
		Source:   source,
		Client:   &fakeClient{},
		Notifier: notifier,
		Settings: settings,
		Now:      func() time.Time { return now },
	})

	c.Evaluate(context.Background())
	if got := notifier.sendCount(); got != 0 {
		t.Fatalf("sends = %d, want 0 when settings not ready", got)
	}
}

func TestUpdateSettingsTakesEffect(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	notifier := &fakeNotifier{}
	source := &fakeSource{
		klines: map[string][]model.Kline{"S1": burstKlines(now, 4500)},
		daily:  map[string]model.TickerDaily{"S1": {QuoteVolume: 86_400}},
	}

	settings := readySettings()
	settings.ChatID = 0 // not ready

	c := NewConsumer(ConsumerConfig{
		Source:   source,
		Client:   &fakeClient{klines: chartFixture()},
		Notifier: notifier,
		Settings: settings,
		Now:      func() time.Time { return now },
	})

	c.Evaluate(context.Background())
	if got := notifier.sendCount(); got != 0 {
		t.Fatalf("sends before update = %d, want 0", got)
	}

	c.UpdateSettings(readySettings())
	c.Evaluate(context.Background())
	if got := notifier.sendCount(); got != 1 {
		t.Fatalf("sends after update = %d, want 1", got)
	}
}
