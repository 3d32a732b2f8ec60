// Package sqlite implements the settings store on SQLite for development,
// mirroring the postgres package's contract.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"volume-screener/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	id             INTEGER PRIMARY KEY,
	interval       INTEGER NOT NULL DEFAULT 60,
	min_multiplier REAL NOT NULL DEFAULT 50.0,
	timeout        INTEGER NOT NULL DEFAULT 60,
	chat_id        INTEGER,
	bot_token      TEXT,
	created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Store keeps the single settings record in a local SQLite file.
type Store struct {
	db *sql.DB
}

// New opens the SQLite database and ensures the schema exists.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ensure schema: %w", err)
	}

	slog.Info("sqlite settings store ready", slog.String("path", dbPath))
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for health probes.
func (s *Store) DB() *sql.DB { return s.db }

// CreateIfAbsent inserts the default settings row if none exists.
func (s *Store) CreateIfAbsent(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (id) VALUES (1)`)
	if err != nil {
		return fmt.Errorf("sqlite insert settings: %w", err)
	}
	return nil
}

// Get reads the settings record. Nullable columns come back as zero values.
func (s *Store) Get(ctx context.Context) (model.Settings, error) {
	var out model.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT id, interval, min_multiplier, timeout,
		       COALESCE(chat_id, 0), COALESCE(bot_token, '')
		FROM settings WHERE id = 1`,
	).Scan(&out.ID, &out.Interval, &out.MinMultiplier, &out.Timeout, &out.ChatID, &out.BotToken)
	if err != nil {
		return model.Settings{}, fmt.Errorf("sqlite read settings: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
