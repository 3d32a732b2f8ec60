// Package redisstore persists signal cooldowns in Redis so a restart does
// not re-fire every symbol at once.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const keyPrefix = "screener:cooldown:"

// CooldownStore writes cooldown expiries to Redis keyed per symbol. The key
// TTL matches the cooldown so Redis expires stale entries on its own.
type CooldownStore struct {
	rdb *goredis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string) (*CooldownStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return &CooldownStore{rdb: rdb}, nil
}

// Client exposes the underlying client for health probes.
func (c *CooldownStore) Client() *goredis.Client { return c.rdb }

// Save records a symbol's cooldown expiry (unix seconds).
func (c *CooldownStore) Save(ctx context.Context, symbol string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	err := c.rdb.Set(ctx, keyPrefix+symbol, until.Unix(), ttl).Err()
	if err != nil {
		return fmt.Errorf("redis save cooldown %s: %w", symbol, err)
	}
	return nil
}

// Load returns all persisted cooldown expiries by symbol.
func (c *CooldownStore) Load(ctx context.Context) (map[string]time.Time, error) {
	out := make(map[string]time.Time)

	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := c.rdb.Get(ctx, key).Result()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis read cooldown %s: %w", key, err)
		}
		unix, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}
		symbol := strings.TrimPrefix(key, keyPrefix)
		out[symbol] = time.Unix(unix, 0)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan cooldowns: %w", err)
	}
	return out, nil
}

// Close closes the Redis client.
func (c *CooldownStore) Close() error {
	return c.rdb.Close()
}
