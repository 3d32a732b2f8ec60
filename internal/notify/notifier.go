// Package notify provides signal delivery to external channels. The
// pipeline talks to the Notifier interface; Telegram is the production
// backend and LogNotifier is useful for development.
package notify

import (
	"context"
	"log/slog"
)

// MessageRef identifies a sent message so it can be edited later.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// SendText delivers a text message and returns a reference to it.
	SendText(ctx context.Context, token string, chatID int64, text string) (*MessageRef, error)

	// EditMedia replaces a sent message's media with a photo, keeping the
	// caption.
	EditMedia(ctx context.Context, token string, chatID int64, messageID int64, photo []byte, caption string) error

	// Close releases underlying resources.
	Close() error
}

// LogNotifier logs instead of sending (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) SendText(ctx context.Context, token string, chatID int64, text string) (*MessageRef, error) {
	slog.Info("notify (log)", slog.Int64("chat_id", chatID), slog.String("text", text))
	return &MessageRef{ChatID: chatID, MessageID: 1}, nil
}

func (n *LogNotifier) EditMedia(ctx context.Context, token string, chatID int64, messageID int64, photo []byte, caption string) error {
	slog.Info("notify media (log)", slog.Int64("chat_id", chatID), slog.Int64("message_id", messageID), slog.Int("photo_bytes", len(photo)))
	return nil
}

func (n *LogNotifier) Close() error { return nil }
