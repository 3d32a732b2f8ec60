package screener

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CooldownStore persists cooldown entries so a restart does not replay a
// burst of duplicate signals. Implemented by store/redisstore.
type CooldownStore interface {
	// Save persists one entry with its expiry.
	Save(ctx context.Context, symbol string, until time.Time) error

	// Load returns all unexpired entries.
	Load(ctx context.Context) (map[string]time.Time, error)
}

// CooldownTracker tracks the earliest allowed signal time per symbol.
// Expired entries are evicted lazily on read. Owned by the consumer.
type CooldownTracker struct {
	mu    sync.Mutex
	until map[string]time.Time
	store CooldownStore // optional write-through persistence
}

// NewCooldownTracker creates an empty in-memory tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{until: make(map[string]time.Time)}
}

// SetStore enables write-through persistence. Call before use.
func (t *CooldownTracker) SetStore(s CooldownStore) { t.store = s }

// Restore loads persisted entries that have not yet expired.
func (t *CooldownTracker) Restore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	entries, err := t.store.Load(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for symbol, until := range entries {
		if until.After(now) {
			t.until[symbol] = until
		}
	}
	return nil
}

// IsBlocked reports whether the symbol is still in cooldown at now.
// A read past the expiry removes the entry.
func (t *CooldownTracker) IsBlocked(symbol string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	until, ok := t.until[symbol]
	if !ok {
		return false
	}
	if !now.Before(until) {
		delete(t.until, symbol)
		return false
	}
	return true
}

// Block records a cooldown for the symbol until now+d. Blocking an already
// blocked symbol just rewrites the expiry.
func (t *CooldownTracker) Block(symbol string, d time.Duration, now time.Time) {
	until := now.Add(d)
	t.mu.Lock()
	t.until[symbol] = until
	t.mu.Unlock()

	if t.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := t.store.Save(ctx, symbol, until); err != nil {
				slog.Warn("cooldown persist failed", slog.String("symbol", symbol), slog.Any("error", err))
			}
		}()
	}
}

// Len returns the number of tracked entries, expired ones included.
func (t *CooldownTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.until)
}
