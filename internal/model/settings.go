package model

// Settings is the hot-reloadable screener configuration read from the
// settings store (single row, id=1). ChatID==0 or BotToken=="" means the
// notification target is not configured yet.
type Settings struct {
	ID            int     `json:"id"`
	Interval      int     `json:"interval"`       // evaluation window, seconds
	MinMultiplier float64 `json:"min_multiplier"` // signal threshold
	Timeout       int     `json:"timeout"`        // per-symbol cooldown, seconds
	ChatID        int64   `json:"chat_id"`
	BotToken      string  `json:"bot_token"`
}

// IsReady reports whether the screener may evaluate and dispatch signals:
// all numeric knobs positive and the notification target present.
func (s Settings) IsReady() bool {
	return s.Interval > 0 &&
		s.MinMultiplier > 0 &&
		s.Timeout > 0 &&
		s.ChatID != 0 &&
		s.BotToken != ""
}
