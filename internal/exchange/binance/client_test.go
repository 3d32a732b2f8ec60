package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"volume-screener/internal/model"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient()
	c.baseOverride = srv.URL
	return c
}

func TestSymbolsBatched(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/exchangeInfo" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"symbols":[
			{"symbol":"BTCUSDT","status":"TRADING"},
			{"symbol":"DEADUSDT","status":"BREAK"},
			{"symbol":"ETHUSDT","status":"TRADING"},
			{"symbol":"XRPUSDT","status":"TRADING"}
		]}`))
	})

	batches, err := c.SymbolsBatched(context.Background(), model.MarketFutures, 2)
	if err != nil {
		t.Fatalf("SymbolsBatched: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(batches))
	}
	if len(batches[0]) != 2 || batches[0][0] != "BTCUSDT" || batches[0][1] != "ETHUSDT" {
		t.Errorf("first batch = %v", batches[0])
	}
	if len(batches[1]) != 1 || batches[1][0] != "XRPUSDT" {
		t.Errorf("second batch = %v", batches[1])
	}
}

func TestTickerDaily(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","lastPrice":"65000.5","priceChangePercent":"-1.25","quoteVolume":"12345678.9"}
		]`))
	})

	daily, err := c.TickerDaily(context.Background(), model.MarketSpot)
	if err != nil {
		t.Fatalf("TickerDaily: %v", err)
	}
	td, ok := daily["BTCUSDT"]
	if !ok {
		t.Fatal("BTCUSDT missing")
	}
	if td.LastPrice != 65000.5 || td.PriceChangePct != -1.25 || td.QuoteVolume != 12345678.9 {
		t.Errorf("unexpected ticker: %+v", td)
	}
}

func TestRecentKlines(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "5m" || q.Get("limit") != "500" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[
			[1000,"10.0","12.0","9.0","11.0","100.5",3999,"1050.25","ignored",0,"0","0"]
		]`))
	})

	klines, err := c.RecentKlines(context.Background(), model.MarketFutures, "BTCUSDT", "5m", 500)
	if err != nil {
		t.Fatalf("RecentKlines: %v", err)
	}
	if len(klines) != 1 {
		t.Fatalf("klines = %d, want 1", len(klines))
	}
	k := klines[0]
	if k.OpenTime != 1000 || k.CloseTime != 3999 {
		t.Errorf("times = %d/%d", k.OpenTime, k.CloseTime)
	}
	if k.Open != 10 || k.High != 12 || k.Low != 9 || k.Close != 11 {
		t.Errorf("ohlc = %v/%v/%v/%v", k.Open, k.High, k.Low, k.Close)
	}
	if k.BaseVolume != 100.5 || k.QuoteVolume != 1050.25 {
		t.Errorf("volumes = %v/%v", k.BaseVolume, k.QuoteVolume)
	}
	if !k.Closed {
		t.Error("REST klines are historical and must be closed")
	}
}

func TestGetJSONErrorStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	})

	if _, err := c.RecentKlines(context.Background(), model.MarketSpot, "NOPE", "5m", 10); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
