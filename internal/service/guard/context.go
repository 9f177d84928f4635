package guard

import (
	"context"
	"fmt"

	"TradeScan/internal/domain/models"
	drepo "TradeScan/internal/domain/repository"
)

// PriceTape exposes the live last-trade table maintained by the stream
// client. May be absent; the broker's latest-trade lookup is the
// fallback.
type PriceTape interface {
	Last(symbol string) (float64, bool)
}

// EvalContext is the read-only snapshot guardrails evaluate against.
// Everything is fetched fresh per order request and memoized so a
// later gate can reuse data fetched by an earlier one (the exposure
// gate reuses the max-positions gate's position list).
type EvalContext struct {
	Order  *models.Order
	broker drepo.Broker
	tape   PriceTape

	account          *models.Account
	positions        []models.Position
	positionsFetched bool
}

func NewEvalContext(order *models.Order, broker drepo.Broker, tape PriceTape) *EvalContext {
	return &EvalContext{Order: order, broker: broker, tape: tape}
}

func (ec *EvalContext) Account(ctx context.Context) (models.Account, error) {
	if ec.account == nil {
		a, err := ec.broker.Account(ctx)
		if err != nil {
			return models.Account{}, err
		}
		ec.account = &a
	}
	return *ec.account, nil
}

func (ec *EvalContext) Positions(ctx context.Context) ([]models.Position, error) {
	if !ec.positionsFetched {
		ps, err := ec.broker.Positions(ctx)
		if err != nil {
			return nil, err
		}
		ec.positions = ps
		ec.positionsFetched = true
	}
	return ec.positions, nil
}

func (ec *EvalContext) Clock(ctx context.Context) (models.Clock, error) {
	return ec.broker.Clock(ctx)
}

func (ec *EvalContext) LatestOrder(ctx context.Context) (*models.OrderStub, error) {
	os, err := ec.broker.LatestOrders(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(os) == 0 {
		return nil, nil
	}
	return &os[0], nil
}

// EntryPrice estimates the order's entry: an explicit entry wins, then
// the live tape, then the broker's latest trade.
func (ec *EvalContext) EntryPrice(ctx context.Context) (float64, error) {
	if ec.Order.Entry > 0 {
		return float64(ec.Order.Entry), nil
	}
	if ec.tape != nil {
		if p, ok := ec.tape.Last(ec.Order.Symbol); ok && p > 0 {
			return p, nil
		}
	}
	p, err := ec.broker.LatestTradePrice(ctx, ec.Order.Symbol)
	if err != nil {
		return 0, fmt.Errorf("estimate entry price: %w", err)
	}
	return p, nil
}
