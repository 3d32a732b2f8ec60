package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"volume-screener/config"
	"volume-screener/internal/exchange/binance"
	"volume-screener/internal/logger"
	"volume-screener/internal/metrics"
	"volume-screener/internal/model"
	"volume-screener/internal/notify"
	"volume-screener/internal/screener"
	"volume-screener/internal/store/postgres"
	"volume-screener/internal/store/redisstore"
	"volume-screener/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	logger.Init("screener", logger.ParseLevel(cfg.LogLevel))
	slog.Info("starting", slog.String("environment", cfg.Environment))

	market, err := model.ParseMarketType(cfg.MarketType)
	if err != nil {
		slog.Error("invalid MARKET_TYPE", slog.Any("error", err))
		os.Exit(1)
	}
	exchange := model.Exchange(cfg.Exchange)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Settings store: SQLite in development, Postgres otherwise ----
	var store model.SettingsStore
	var sqliteStore *sqlite.Store
	if cfg.Development() {
		os.MkdirAll("data", 0o755)
		sqliteStore, err = sqlite.New(cfg.SQLitePath)
		if err != nil {
			slog.Error("sqlite init failed", slog.Any("error", err))
			os.Exit(1)
		}
		store = sqliteStore
	} else {
		pgStore, err := postgres.New(ctx, cfg.DSN())
		if err != nil {
			slog.Error("postgres init failed", slog.Any("error", err))
			os.Exit(1)
		}
		store = pgStore
	}
	defer store.Close()

	// ---- Cooldown persistence (optional) ----
	cooldowns := screener.NewCooldownTracker()
	var redisStore *redisstore.CooldownStore
	if cfg.RedisAddr != "" {
		redisStore, err = redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			slog.Warn("redis init failed, cooldowns stay in-memory", slog.Any("error", err))
		} else {
			cooldowns.SetStore(redisStore)
			defer redisStore.Close()
		}
	}

	// ---- Liveness checks ----
	var healthDB *sql.DB
	if sqliteStore != nil {
		healthDB = sqliteStore.DB()
	}
	var healthRedis *goredis.Client
	if redisStore != nil {
		healthRedis = redisStore.Client()
	}
	if healthDB != nil || healthRedis != nil {
		health.StartLivenessChecker(ctx, healthDB, healthRedis, 10*time.Second)
	}

	// ---- Exchange client + stream factory with metrics wiring ----
	client := binance.NewClient()
	defer client.Close()

	streams := func(symbols []string, handler model.TradeHandler) model.StreamHandle {
		shard := binance.NewAggTradeStream(market, symbols, handler)
		shard.OnReconnect = func() {
			prom.WSReconnects.Inc()
		}
		return shard
	}

	// ---- Notifier ----
	var notifier notify.Notifier
	if cfg.Development() {
		notifier = notify.NewLogNotifier()
	} else {
		notifier = notify.NewTelegram()
	}

	// ---- Screener ----
	scr := screener.New(screener.Config{
		Store:     store,
		Client:    client,
		Streams:   streams,
		Notifier:  notifier,
		Exchange:  exchange,
		Market:    market,
		Cooldowns: cooldowns,
		Hooks: screener.Hooks{
			OnTrade: func() {
				prom.TradesTotal.Inc()
				health.SetWSConnected(true)
				health.SetLastTradeTime(time.Now())
			},
			OnEvicted: func(count int) {
				prom.KlinesEvicted.Add(float64(count))
			},
			OnShard: func(active int) {
				prom.ActiveShards.Set(float64(active))
			},
			OnSignal: func() {
				prom.SignalsTotal.Inc()
			},
			OnEval: func(d time.Duration) {
				prom.EvalDur.Observe(d.Seconds())
			},
			OnChart: func(d time.Duration) {
				prom.ChartRenderDur.Observe(d.Seconds())
			},
			OnNotifyErr: func() {
				prom.NotifyErrors.Inc()
			},
		},
	})

	go func() {
		if err := scr.Start(ctx); err != nil {
			slog.Error("screener failed", slog.Any("error", err))
			cancel()
		}
	}()

	// ---- Wait for shutdown signal ----
	select {
	case <-sigCh:
		slog.Info("shutdown signal received")
	case <-ctx.Done():
	}

	if err := scr.Stop(); err != nil {
		slog.Error("screener stop failed", slog.Any("error", err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	slog.Info("shutdown complete")
}
