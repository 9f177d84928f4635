package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"TradeScan/internal/domain/models"
	drepo "TradeScan/internal/domain/repository"
	"TradeScan/internal/service/guard"
	appcfg "TradeScan/pkg/config"
	xhttp "TradeScan/pkg/http"
	applogger "TradeScan/pkg/logger"
)

// OrderGate runs the guardrail chain over a proposed order and, when it
// passes, forwards the original payload to the brokerage verbatim.
type OrderGate struct {
	cfg       *appcfg.Config
	broker    drepo.Broker
	tape      guard.PriceTape
	publisher drepo.SignalPublisher
	l         *applogger.Logger
}

func NewOrderGate(cfg *appcfg.Config, broker drepo.Broker, tape guard.PriceTape, publisher drepo.SignalPublisher, l *applogger.Logger) *OrderGate {
	return &OrderGate{cfg: cfg, broker: broker, tape: tape, publisher: publisher, l: l}
}

// OrderDecision is the outcome of one submission attempt. When Allowed
// is false, Rule names the guardrail that rejected and Reason explains
// the computed value against its limit. When Allowed is true, Upstream
// carries the brokerage reply to replay to the caller.
type OrderDecision struct {
	Allowed  bool
	Rule     string
	Reason   string
	Upstream *drepo.BrokerResponse
}

// Submit parses the raw order body, evaluates the guardrail chain and
// forwards on pass. The guardrail configuration is re-read from the
// environment on every call so operator changes apply immediately.
func (g *OrderGate) Submit(ctx context.Context, raw []byte) (*OrderDecision, error) {
	order, err := parseOrder(raw)
	if err != nil {
		return nil, err
	}

	gcfg := guard.FromEnv(g.cfg)
	chain := guard.Chain(gcfg)
	ec := guard.NewEvalContext(order, g.broker, g.tape)

	res, rule, err := guard.Evaluate(ctx, chain, ec)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		if g.l != nil {
			g.l.Info("order rejected",
				applogger.String("symbol", order.Symbol),
				applogger.String("rule", rule),
				applogger.String("reason", res.Reason))
		}
		g.audit(ctx, order, false, rule, res.Reason)
		return &OrderDecision{Rule: rule, Reason: res.Reason}, nil
	}

	upstream, err := g.broker.SubmitOrder(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("forward order: %w", err)
	}
	if g.l != nil {
		g.l.Info("order forwarded",
			applogger.String("symbol", order.Symbol),
			applogger.Int("status", upstream.StatusCode))
	}
	g.audit(ctx, order, true, "", "")
	return &OrderDecision{Allowed: true, Upstream: upstream}, nil
}

// parseOrder decodes just the fields the guardrails need while keeping
// the raw payload for forwarding.
func parseOrder(raw []byte) (*models.Order, error) {
	var order models.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, xhttp.BadRequestError("order body is not valid JSON").WithError(err)
	}
	order.Symbol = strings.ToUpper(strings.TrimSpace(order.Symbol))
	if order.Symbol == "" {
		return nil, xhttp.BadRequestError("order symbol is required")
	}
	switch order.Side {
	case "buy", "sell":
	default:
		return nil, xhttp.BadRequestErrorf("order side must be buy or sell, got %q", order.Side)
	}
	if order.Qty <= 0 {
		return nil, xhttp.BadRequestError("order qty must be positive")
	}
	order.Raw = raw
	return &order, nil
}

// audit publishes an order-audit record. Best effort: a broker outage
// never blocks the order path.
func (g *OrderGate) audit(ctx context.Context, order *models.Order, allowed bool, rule, reason string) {
	if g.publisher == nil {
		return
	}
	record := map[string]interface{}{
		"symbol":  order.Symbol,
		"side":    order.Side,
		"qty":     order.Qty,
		"allowed": allowed,
	}
	if !allowed {
		record["rule"] = rule
		record["reason"] = reason
	}
	body, err := json.Marshal(record)
	if err != nil {
		return
	}
	status := 200
	if !allowed {
		status = 422
	}
	if err := g.publisher.PublishOrderAudit(ctx, order.Symbol, status, body); err != nil && g.l != nil {
		g.l.Warn("order audit publish failed", applogger.Error(err))
	}
}
