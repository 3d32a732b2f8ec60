package notify

import (
	"strings"
	"testing"

	"volume-screener/internal/model"
)

func TestSignalText(t *testing.T) {
	got := SignalText(Signal{
		Symbol:         "BTCUSDT",
		Multiplier:     75.5,
		Exchange:       model.ExchangeBinance,
		Market:         model.MarketFutures,
		DailyChangePct: 3.21,
		DailyVolume:    1_234_000,
	})

	want := "🚀 Резкий рост объема: BTCUSDT\n\n" +
		"Текущий объем выше среднего в 75.50x\n" +
		"Изменение цены за день: 3.21%\n" +
		"Объем за день: 1.23 млн $\n\n" +
		"https://www.binance.com/en/futures/BTCUSDT"
	if got != want {
		t.Errorf("message mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestSignalTextWithCount(t *testing.T) {
	got := SignalText(Signal{
		Symbol:     "ETHUSDT",
		Multiplier: 60,
		Exchange:   model.ExchangeBinance,
		Market:     model.MarketSpot,
		Count:      3,
	})
	if !strings.HasSuffix(got, "\n\nСигнал №3") {
		t.Errorf("missing signal counter line: %q", got)
	}
	if !strings.Contains(got, "https://www.binance.com/en/trade/ETHUSDT?type=spot") {
		t.Errorf("wrong spot deep link: %q", got)
	}
}

func TestSignalTextFallingEmoji(t *testing.T) {
	got := SignalText(Signal{Symbol: "XRPUSDT", Multiplier: 0.5})
	if !strings.HasPrefix(got, "🔻") {
		t.Errorf("expected falling emoji for multiplier < 1: %q", got)
	}
}

func TestHumanVolume(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{950, "950"},
		{1_500, "1.5 тыс."},
		{1_234_000, "1.23 млн"},
		{2_000_000_000, "2 млрд"},
		{3_450_000_000_000, "3.45 трлн"},
		{0, "0"},
	}
	for _, c := range cases {
		if got := HumanVolume(c.in); got != c.want {
			t.Errorf("HumanVolume(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDeepLink(t *testing.T) {
	cases := []struct {
		ex     model.Exchange
		market model.MarketType
		want   string
	}{
		{model.ExchangeBinance, model.MarketFutures, "https://www.binance.com/en/futures/BTCUSDT"},
		{model.ExchangeBinance, model.MarketSpot, "https://www.binance.com/en/trade/BTCUSDT?type=spot"},
		{model.ExchangeBingX, model.MarketFutures, "https://bingx.com/en/perpetual/BTCUSDT"},
		{model.ExchangeBingX, model.MarketSpot, "https://bingx.com/en/spot/BTCUSDT"},
	}
	for _, c := range cases {
		if got := DeepLink(c.ex, c.market, "BTCUSDT"); got != c.want {
			t.Errorf("DeepLink(%s, %s) = %q, want %q", c.ex, c.market, got, c.want)
		}
	}
}
