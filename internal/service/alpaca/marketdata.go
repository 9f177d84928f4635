package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"TradeScan/internal/domain/models"
	drepo "TradeScan/internal/domain/repository"
	"TradeScan/pkg/config"
	xhttp "TradeScan/pkg/http"
)

// ErrMissingCredentials is a configuration error: the whole request
// fails, nothing is retried.
var ErrMissingCredentials = errors.New("market data credentials not configured")

// MarketData implements BarSource over the Alpaca stocks data API.
type MarketData struct {
	baseURL   string
	keyID     string
	secretKey string
	feed      string
	client    *xhttp.Client
}

func NewMarketData(cfg *config.Config) *MarketData {
	timeout := cfg.MarketData.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MarketData{
		baseURL:   cfg.MarketData.BaseURL,
		keyID:     cfg.MarketData.KeyID,
		secretKey: cfg.MarketData.SecretKey,
		feed:      cfg.MarketData.Feed,
		client:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// rawBar tolerates the provider's two timestamp encodings: RFC3339
// strings and epoch seconds.
type rawBar struct {
	T json.RawMessage `json:"t"`
	O float64         `json:"o"`
	H float64         `json:"h"`
	L float64         `json:"l"`
	C float64         `json:"c"`
	V int64           `json:"v"`
}

type barsResponse struct {
	Bars json.RawMessage `json:"bars"`
}

// GetBars fetches up to limit bars ascending by time. The lookback
// window is bounded by timeframe (~21 days intraday, ~2 years daily).
func (m *MarketData) GetBars(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Bar, error) {
	if m.keyID == "" || m.secretKey == "" {
		return nil, ErrMissingCredentials
	}
	if limit <= 0 {
		limit = 200
	}
	start := drepo.LookbackStart(tf, time.Now().UTC())

	params := map[string][]string{
		"timeframe":  {string(tf)},
		"limit":      {strconv.Itoa(limit)},
		"start":      {start.Format(time.RFC3339)},
		"adjustment": {"raw"},
	}
	if m.feed != "" {
		params["feed"] = []string{m.feed}
	}

	var br barsResponse
	err := m.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v2/stocks/%s/bars", m.baseURL, symbol),
		Headers: map[string]string{
			"APCA-API-KEY-ID":     m.keyID,
			"APCA-API-SECRET-KEY": m.secretKey,
		},
		QueryParams: params,
	}, &br)
	if err != nil {
		return nil, fmt.Errorf("fetch bars %s %s: %w", symbol, tf, err)
	}

	return normalizeBars(br.Bars, symbol)
}

// normalizeBars accepts both response shapes the provider has been
// observed to return: a flat array and a symbol-keyed object.
func normalizeBars(raw json.RawMessage, symbol string) ([]models.Bar, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var arr []rawBar
	if err := json.Unmarshal(raw, &arr); err != nil {
		var bySymbol map[string][]rawBar
		if err2 := json.Unmarshal(raw, &bySymbol); err2 != nil {
			return nil, fmt.Errorf("unexpected bars shape: %w", err)
		}
		arr = bySymbol[symbol]
	}

	out := make([]models.Bar, 0, len(arr))
	for _, rb := range arr {
		t, ok := parseBarTime(rb.T)
		if !ok {
			continue
		}
		out = append(out, models.Bar{Time: t, Open: rb.O, High: rb.H, Low: rb.L, Close: rb.C, Volume: rb.V})
	}
	return out, nil
}

func parseBarTime(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t.Unix(), true
		}
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		// some payloads carry milliseconds
		if n > 1e12 {
			n /= 1000
		}
		return n, true
	}
	return 0, false
}

var _ drepo.BarSource = (*MarketData)(nil)
