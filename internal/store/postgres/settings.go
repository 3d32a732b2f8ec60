// Package postgres implements the settings store on PostgreSQL. This is the
// production backend; the sqlite package mirrors it for development.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"volume-screener/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	id             INT PRIMARY KEY,
	interval       INT NOT NULL DEFAULT 60,
	min_multiplier DOUBLE PRECISION NOT NULL DEFAULT 50.0,
	timeout        INT NOT NULL DEFAULT 60,
	chat_id        BIGINT,
	bot_token      TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store keeps the single settings record in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ensure schema: %w", err)
	}

	slog.Info("postgres settings store ready")
	return &Store{pool: pool}, nil
}

// CreateIfAbsent inserts the default settings row if none exists.
func (s *Store) CreateIfAbsent(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("postgres insert settings: %w", err)
	}
	return nil
}

// Get reads the settings record. Nullable columns come back as zero values.
func (s *Store) Get(ctx context.Context) (model.Settings, error) {
	var out model.Settings
	err := s.pool.QueryRow(ctx, `
		SELECT id, interval, min_multiplier, timeout,
		       COALESCE(chat_id, 0), COALESCE(bot_token, '')
		FROM settings WHERE id = 1`,
	).Scan(&out.ID, &out.Interval, &out.MinMultiplier, &out.Timeout, &out.ChatID, &out.BotToken)
	if err != nil {
		return model.Settings{}, fmt.Errorf("postgres read settings: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
