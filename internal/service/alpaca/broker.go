package alpaca

import (
	"context"
	"fmt"
	"io"
	"time"

	"TradeScan/internal/domain/models"
	drepo "TradeScan/internal/domain/repository"
	"TradeScan/pkg/config"
	xhttp "TradeScan/pkg/http"
)

// Broker talks to the Alpaca trading API. Order submission is a pure
// pass-through: the upstream status code and body are replayed to the
// caller untouched.
type Broker struct {
	baseURL   string
	dataURL   string
	keyID     string
	secretKey string
	client    *xhttp.Client
}

func NewBroker(cfg *config.Config) *Broker {
	timeout := cfg.Broker.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Broker{
		baseURL:   cfg.Broker.BaseURL,
		dataURL:   cfg.MarketData.BaseURL,
		keyID:     cfg.Broker.KeyID,
		secretKey: cfg.Broker.SecretKey,
		client:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

func (b *Broker) headers() map[string]string {
	return map[string]string{
		"APCA-API-KEY-ID":     b.keyID,
		"APCA-API-SECRET-KEY": b.secretKey,
	}
}

func (b *Broker) getJSON(ctx context.Context, url string, params map[string][]string, dest interface{}) error {
	if b.keyID == "" || b.secretKey == "" {
		return ErrMissingCredentials
	}
	return b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         url,
		Headers:     b.headers(),
		QueryParams: params,
	}, dest)
}

func (b *Broker) Account(ctx context.Context) (models.Account, error) {
	var a models.Account
	if err := b.getJSON(ctx, b.baseURL+"/v2/account", nil, &a); err != nil {
		return models.Account{}, fmt.Errorf("fetch account: %w", err)
	}
	return a, nil
}

func (b *Broker) Positions(ctx context.Context) ([]models.Position, error) {
	var ps []models.Position
	if err := b.getJSON(ctx, b.baseURL+"/v2/positions", nil, &ps); err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	return ps, nil
}

func (b *Broker) Clock(ctx context.Context) (models.Clock, error) {
	var c models.Clock
	if err := b.getJSON(ctx, b.baseURL+"/v2/clock", nil, &c); err != nil {
		return models.Clock{}, fmt.Errorf("fetch clock: %w", err)
	}
	return c, nil
}

func (b *Broker) LatestOrders(ctx context.Context, limit int) ([]models.OrderStub, error) {
	if limit <= 0 {
		limit = 1
	}
	var os []models.OrderStub
	params := map[string][]string{
		"status":    {"all"},
		"limit":     {fmt.Sprintf("%d", limit)},
		"direction": {"desc"},
	}
	if err := b.getJSON(ctx, b.baseURL+"/v2/orders", params, &os); err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	return os, nil
}

type latestTradeResponse struct {
	Trade struct {
		P float64 `json:"p"`
	} `json:"trade"`
}

func (b *Broker) LatestTradePrice(ctx context.Context, symbol string) (float64, error) {
	var lt latestTradeResponse
	url := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", b.dataURL, symbol)
	if err := b.getJSON(ctx, url, nil, &lt); err != nil {
		return 0, fmt.Errorf("fetch latest trade %s: %w", symbol, err)
	}
	return lt.Trade.P, nil
}

// SubmitOrder forwards the raw payload and replays the upstream reply
// verbatim, including non-2xx responses: callers depend on the exact
// upstream error schema.
func (b *Broker) SubmitOrder(ctx context.Context, raw []byte) (*drepo.BrokerResponse, error) {
	if b.keyID == "" || b.secretKey == "" {
		return nil, ErrMissingCredentials
	}
	resp, err := b.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     b.baseURL + "/v2/orders",
		Headers: b.headers(),
		Body:    raw,
	})
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read order response: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json"
	}
	return &drepo.BrokerResponse{StatusCode: resp.StatusCode, Body: body, ContentType: ct}, nil
}

// ParseOrderTime parses the brokerage order timestamp format.
func ParseOrderTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var _ drepo.Broker = (*Broker)(nil)
