package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram sends signals via the Telegram Bot API. The bot token comes from
// the hot-reloadable settings, so it is a call argument rather than a field.
type Telegram struct {
	client *http.Client
}

// NewTelegram creates a Telegram notifier.
func NewTelegram() *Telegram {
	return &Telegram{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiResponse is the common Bot API envelope.
type apiResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Description string `json:"description"`
}

// SendText sends an HTML-formatted message with link previews disabled.
func (t *Telegram) SendText(ctx context.Context, token string, chatID int64, text string) (*MessageRef, error) {
	body, _ := json.Marshal(map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})

	url := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var parsed apiResponse
	if err := t.do(req, &parsed); err != nil {
		return nil, fmt.Errorf("telegram: send message: %w", err)
	}
	return &MessageRef{ChatID: chatID, MessageID: parsed.Result.MessageID}, nil
}

// EditMedia replaces the message's media with the photo via a multipart
// editMessageMedia upload; the caption carries the original signal text.
func (t *Telegram) EditMedia(ctx context.Context, token string, chatID int64, messageID int64, photo []byte, caption string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	w.WriteField("chat_id", fmt.Sprintf("%d", chatID))
	w.WriteField("message_id", fmt.Sprintf("%d", messageID))

	media, _ := json.Marshal(map[string]any{
		"type":       "photo",
		"media":      "attach://chart",
		"caption":    caption,
		"parse_mode": "HTML",
	})
	w.WriteField("media", string(media))

	part, err := w.CreateFormFile("chart", "chart.png")
	if err != nil {
		return fmt.Errorf("telegram: form file: %w", err)
	}
	if _, err := part.Write(photo); err != nil {
		return fmt.Errorf("telegram: write photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("telegram: close form: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/editMessageMedia", telegramAPIBase, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var parsed apiResponse
	if err := t.do(req, &parsed); err != nil {
		return fmt.Errorf("telegram: edit media: %w", err)
	}
	return nil
}

// Close releases idle HTTP connections.
func (t *Telegram) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *Telegram) do(req *http.Request, parsed *apiResponse) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(parsed); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("api error: %s", parsed.Description)
	}
	return nil
}
