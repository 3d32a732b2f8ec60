package notify

import (
	"fmt"
	"strings"

	"volume-screener/internal/model"
)

// Signal carries everything the message text needs.
type Signal struct {
	Symbol         string
	Multiplier     float64
	Exchange       model.Exchange
	Market         model.MarketType
	DailyChangePct float64
	DailyVolume    float64
	Count          int
}

// SignalText builds the volume-surge message (HTML parse mode).
func SignalText(s Signal) string {
	emoji := "🚀"
	if s.Multiplier < 1 {
		emoji = "🔻"
	}

	header := fmt.Sprintf("%s Резкий рост объема: %s", emoji, s.Symbol)
	body := fmt.Sprintf(
		"Текущий объем выше среднего в %.2fx\n"+
			"Изменение цены за день: %.2f%%\n"+
			"Объем за день: %s $",
		s.Multiplier, s.DailyChangePct, HumanVolume(s.DailyVolume))
	footer := DeepLink(s.Exchange, s.Market, s.Symbol)

	text := fmt.Sprintf("%s\n\n%s\n\n%s", header, body, footer)
	if s.Count > 0 {
		text += fmt.Sprintf("\n\nСигнал №%d", s.Count)
	}
	return text
}

// HumanVolume renders a volume with Russian short-scale suffixes:
// 1_234_000 → "1.23 млн".
func HumanVolume(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e12:
		return trimZeros(fmt.Sprintf("%.2f", v/1e12)) + " трлн"
	case abs >= 1e9:
		return trimZeros(fmt.Sprintf("%.2f", v/1e9)) + " млрд"
	case abs >= 1e6:
		return trimZeros(fmt.Sprintf("%.2f", v/1e6)) + " млн"
	case abs >= 1e3:
		return trimZeros(fmt.Sprintf("%.2f", v/1e3)) + " тыс."
	default:
		return trimZeros(fmt.Sprintf("%.2f", v))
	}
}

func trimZeros(s string) string {
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// DeepLink builds the exchange URL for quick navigation to the instrument.
func DeepLink(ex model.Exchange, market model.MarketType, symbol string) string {
	switch ex {
	case model.ExchangeBingX:
		if market == model.MarketFutures {
			return "https://bingx.com/en/perpetual/" + symbol
		}
		return "https://bingx.com/en/spot/" + symbol
	default:
		if market == model.MarketFutures {
			return "https://www.binance.com/en/futures/" + symbol
		}
		return "https://www.binance.com/en/trade/" + symbol + "?type=spot"
	}
}
