package screener

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"volume-screener/internal/model"
	"volume-screener/internal/notify"
)

// SettingsRefreshInterval is the cadence at which the supervisor re-reads
// the settings record and pushes it into the consumer.
const SettingsRefreshInterval = 10 * time.Second

// Config wires the screener supervisor to its collaborators.
type Config struct {
	Store    model.SettingsStore
	Client   model.ExchangeClient
	Streams  model.StreamFactory
	Notifier notify.Notifier
	Exchange model.Exchange
	Market   model.MarketType

	// Cooldowns is optional; when set (e.g. a Redis-backed tracker) it is
	// restored at startup and handed to the consumer.
	Cooldowns *CooldownTracker

	// RefreshInterval overrides SettingsRefreshInterval (tests).
	RefreshInterval time.Duration

	// Hooks are passed down to producer and consumer for metrics wiring.
	Hooks Hooks
}

// Hooks bundles the optional metrics callbacks of the whole pipeline.
type Hooks struct {
	OnTrade     func()
	OnEvicted   func(count int)
	OnShard     func(active int)
	OnSignal    func()
	OnEval      func(d time.Duration)
	OnChart     func(d time.Duration)
	OnNotifyErr func()
}

// Screener composes one Producer and one Consumer and keeps the consumer's
// settings fresh. Start blocks; Stop is idempotent.
type Screener struct {
	cfg Config

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	producer *Producer
	consumer *Consumer
}

// New creates a supervisor. Start launches it.
func New(cfg Config) *Screener {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = SettingsRefreshInterval
	}
	return &Screener{cfg: cfg}
}

// Start ensures the settings record exists, builds the pipeline and runs it.
// Blocks until ctx is cancelled or Stop is called.
func (s *Screener) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true

	if err := s.cfg.Store.CreateIfAbsent(ctx); err != nil {
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("screener: ensure settings: %w", err)
	}
	settings, err := s.cfg.Store.Get(ctx)
	if err != nil {
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("screener: fetch settings: %w", err)
	}

	if s.cfg.Cooldowns != nil {
		if err := s.cfg.Cooldowns.Restore(ctx); err != nil {
			slog.Warn("cooldown restore failed", slog.Any("error", err))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.producer = NewProducer(ProducerConfig{
		Client:   s.cfg.Client,
		Streams:  s.cfg.Streams,
		Exchange: s.cfg.Exchange,
		Market:   s.cfg.Market,
	})
	s.producer.OnTrade = s.cfg.Hooks.OnTrade
	s.producer.OnEvicted = s.cfg.Hooks.OnEvicted
	s.producer.OnShard = s.cfg.Hooks.OnShard

	s.consumer = NewConsumer(ConsumerConfig{
		Source:    s.producer,
		Client:    s.cfg.Client,
		Notifier:  s.cfg.Notifier,
		Exchange:  s.cfg.Exchange,
		Market:    s.cfg.Market,
		Settings:  settings,
		Cooldowns: s.cfg.Cooldowns,
	})
	s.consumer.OnSignal = s.cfg.Hooks.OnSignal
	s.consumer.OnEval = s.cfg.Hooks.OnEval
	s.consumer.OnChart = s.cfg.Hooks.OnChart
	s.consumer.OnNotifyErr = s.cfg.Hooks.OnNotifyErr
	s.mu.Unlock()

	slog.Info("screener started")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := s.producer.Run(runCtx); err != nil {
			slog.Error("producer exited", slog.Any("error", err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := s.consumer.Run(runCtx); err != nil {
			slog.Error("consumer exited", slog.Any("error", err))
		}
	}()
	go func() {
		defer wg.Done()
		s.refreshSettings(runCtx)
	}()

	wg.Wait()
	return nil
}

// refreshSettings re-reads the settings record on a fixed cadence. Read
// failures are logged; the consumer keeps its last-good settings.
func (s *Screener) refreshSettings(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		settings, err := s.cfg.Store.Get(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("settings refresh failed", slog.Any("error", err))
			continue
		}
		s.consumer.UpdateSettings(settings)
	}
}

// Stop shuts the pipeline down: consumer first, then producer, then the
// refresh loop. Idempotent.
func (s *Screener) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			slog.Error("consumer stop failed", slog.Any("error", err))
		}
	}
	if s.producer != nil {
		if err := s.producer.Stop(); err != nil {
			slog.Error("producer stop failed", slog.Any("error", err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	slog.Info("screener stopped")
	return nil
}
