package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	drepo "TradeScan/internal/domain/repository"
	"TradeScan/pkg/config"
)

func newTestConfig(baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.MarketData.BaseURL = baseURL
	cfg.MarketData.KeyID = "key"
	cfg.MarketData.SecretKey = "secret"
	cfg.MarketData.Timeout = 2 * time.Second
	return cfg
}

func TestGetBarsMissingCredentials(t *testing.T) {
	cfg := &config.Config{}
	m := NewMarketData(cfg)
	_, err := m.GetBars(context.Background(), "AAPL", drepo.TF15Min, 10)
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestGetBarsFlatArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("APCA-API-KEY-ID") != "key" {
			t.Errorf("missing auth header")
		}
		if got := r.URL.Query().Get("timeframe"); got != "15Min" {
			t.Errorf("timeframe %q", got)
		}
		if got := r.URL.Query().Get("adjustment"); got != "raw" {
			t.Errorf("adjustment %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"bars": []map[string]interface{}{
				{"t": "2025-06-02T14:30:00Z", "o": 1.0, "h": 2.0, "l": 0.5, "c": 1.5, "v": 100},
				{"t": "2025-06-02T14:45:00Z", "o": 1.5, "h": 2.5, "l": 1.0, "c": 2.0, "v": 200},
			},
		})
	}))
	defer srv.Close()

	m := NewMarketData(newTestConfig(srv.URL))
	bars, err := m.GetBars(context.Background(), "AAPL", drepo.TF15Min, 10)
	if err != nil {
		t.Fatalf("get bars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars", len(bars))
	}
	if bars[0].Close != 1.5 || bars[1].Close != 2.0 {
		t.Fatalf("bars: %+v", bars)
	}
	if bars[0].Time >= bars[1].Time {
		t.Fatalf("bars must be ascending by time")
	}
}

func TestGetBarsSymbolKeyedMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"bars": map[string]interface{}{
				"AAPL": []map[string]interface{}{
					{"t": 1717338600, "o": 1.0, "h": 2.0, "l": 0.5, "c": 1.5, "v": 100},
				},
			},
		})
	}))
	defer srv.Close()

	m := NewMarketData(newTestConfig(srv.URL))
	bars, err := m.GetBars(context.Background(), "AAPL", drepo.TF15Min, 10)
	if err != nil {
		t.Fatalf("get bars: %v", err)
	}
	if len(bars) != 1 || bars[0].Time != 1717338600 {
		t.Fatalf("bars: %+v", bars)
	}
}

func TestParseBarTimeEncodings(t *testing.T) {
	if got, ok := parseBarTime(json.RawMessage(`"2025-06-02T14:30:00Z"`)); !ok || got != 1748874600 {
		t.Fatalf("rfc3339: %d %v", got, ok)
	}
	if got, ok := parseBarTime(json.RawMessage(`1717338600`)); !ok || got != 1717338600 {
		t.Fatalf("seconds: %d %v", got, ok)
	}
	// millisecond payloads fold to seconds
	if got, ok := parseBarTime(json.RawMessage(`1717338600000`)); !ok || got != 1717338600 {
		t.Fatalf("millis: %d %v", got, ok)
	}
	if _, ok := parseBarTime(json.RawMessage(`"garbage"`)); ok {
		t.Fatalf("garbage must not parse")
	}
}

func TestNormalizeBarsNull(t *testing.T) {
	bars, err := normalizeBars(json.RawMessage(`null`), "AAPL")
	if err != nil || bars != nil {
		t.Fatalf("null bars: %v %v", bars, err)
	}
}
