package repository

import (
	"context"

	"TradeScan/internal/domain/models"
)

// BarSource provides OHLCV bar series for a (symbol, timeframe, limit)
// tuple, ascending by time.
type BarSource interface {
	GetBars(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.Bar, error)
}

// BrokerResponse is an upstream brokerage reply replayed verbatim to
// the caller: exact status code and body, since callers may depend on
// the upstream error schema.
type BrokerResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// Broker exposes the brokerage surface the order path needs. All reads
// are fetched fresh per request; staleness here is unacceptable.
type Broker interface {
	Account(ctx context.Context) (models.Account, error)
	Positions(ctx context.Context) ([]models.Position, error)
	Clock(ctx context.Context) (models.Clock, error)
	LatestOrders(ctx context.Context, limit int) ([]models.OrderStub, error)
	LatestTradePrice(ctx context.Context, symbol string) (float64, error)
	SubmitOrder(ctx context.Context, raw []byte) (*BrokerResponse, error)
}

// SignalPublisher fans accepted candidates and order audit records out
// to a message broker. Publish failures are logged, never surfaced.
type SignalPublisher interface {
	PublishCandidates(ctx context.Context, res *models.ScanResult) error
	PublishOrderAudit(ctx context.Context, symbol string, statusCode int, body []byte) error
}
