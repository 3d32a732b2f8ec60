package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the screener.
type Metrics struct {
	TradesTotal   prometheus.Counter
	SignalsTotal  prometheus.Counter
	WSReconnects  prometheus.Counter
	KlinesEvicted prometheus.Counter
	NotifyErrors  prometheus.Counter

	EvalDur        prometheus.Histogram
	ChartRenderDur prometheus.Histogram

	ActiveShards   prometheus.Gauge
	TrackedSymbols prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_trades_total",
			Help: "Total aggregated trades received from WebSocket",
		}),
		SignalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_signals_total",
			Help: "Total volume-surge signals dispatched",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_ws_reconnects_total",
			Help: "Total WebSocket shard reconnection attempts",
		}),
		KlinesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_klines_evicted_total",
			Help: "Klines evicted from per-symbol history",
		}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_notify_errors_total",
			Help: "Failed notification deliveries",
		}),
		EvalDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_eval_duration_seconds",
			Help:    "Full evaluation pass latency",
			Buckets: prometheus.DefBuckets,
		}),
		ChartRenderDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_chart_render_duration_seconds",
			Help:    "Chart render latency per signal",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveShards: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_active_shards",
			Help: "Currently running WebSocket shards",
		}),
		TrackedSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_tracked_symbols",
			Help: "Symbols currently tracked by the producer",
		}),
	}

	prometheus.MustRegister(
		m.TradesTotal,
		m.SignalsTotal,
		m.WSReconnects,
		m.KlinesEvicted,
		m.NotifyErrors,
		m.EvalDur,
		m.ChartRenderDur,
		m.ActiveShards,
		m.TrackedSymbols,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	WSConnected   bool      `json:"ws_connected"`
	LastTradeTime time.Time `json:"last_trade_time"`
	StoreOK       bool      `json:"store_ok"`
	RedisOK       bool      `json:"redis_ok"`
	RedisInUse    bool      `json:"redis_in_use"`

	StoreLatencyMs float64   `json:"store_latency_ms"`
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
		StoreOK:   true,
	}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTradeTime(t time.Time) {
	h.mu.Lock()
	h.LastTradeTime = t
	h.mu.Unlock()
}

// CheckStore runs a ping against the settings database and records latency.
func (h *HealthStatus) CheckStore(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.StoreOK = err == nil
	h.StoreLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisInUse = true
	h.RedisOK = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Either dependency
// may be nil when not configured.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, db *sql.DB, rdb *goredis.Client, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if db != nil {
					h.CheckStore(probeCtx, db)
				}
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.WSConnected || !h.StoreOK || (h.RedisInUse && !h.RedisOK) {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.StoreOK && !h.WSConnected {
		overallStatus = "unhealthy"
	}

	tradeAge := ""
	if !h.LastTradeTime.IsZero() {
		tradeAge = time.Since(h.LastTradeTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		WSConnected    bool    `json:"ws_connected"`
		LastTradeTime  string  `json:"last_trade_time"`
		TradeAge       string  `json:"trade_age"`
		StoreOK        bool    `json:"store_ok"`
		StoreLatencyMs float64 `json:"store_latency_ms"`
		RedisInUse     bool    `json:"redis_in_use"`
		RedisOK        bool    `json:"redis_ok"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
		LastCheckAt    string  `json:"last_check_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		WSConnected:    h.WSConnected,
		LastTradeTime:  h.LastTradeTime.Format(time.RFC3339),
		TradeAge:       tradeAge,
		StoreOK:        h.StoreOK,
		StoreLatencyMs: h.StoreLatencyMs,
		RedisInUse:     h.RedisInUse,
		RedisOK:        h.RedisOK,
		RedisLatencyMs: h.RedisLatencyMs,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", slog.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
