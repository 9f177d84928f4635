package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"TradeScan/internal/domain/models"
	drepo "TradeScan/internal/domain/repository"
	appcfg "TradeScan/pkg/config"
	xhttp "TradeScan/pkg/http"
)

type gateBroker struct {
	acct      models.Account
	positions []models.Position
	clock     models.Clock
	submitted [][]byte
}

func (g *gateBroker) Account(context.Context) (models.Account, error)     { return g.acct, nil }
func (g *gateBroker) Positions(context.Context) ([]models.Position, error) { return g.positions, nil }
func (g *gateBroker) Clock(context.Context) (models.Clock, error)         { return g.clock, nil }
func (g *gateBroker) LatestOrders(context.Context, int) ([]models.OrderStub, error) {
	return nil, nil
}
func (g *gateBroker) LatestTradePrice(context.Context, string) (float64, error) { return 100, nil }
func (g *gateBroker) SubmitOrder(_ context.Context, raw []byte) (*drepo.BrokerResponse, error) {
	g.submitted = append(g.submitted, raw)
	return &drepo.BrokerResponse{StatusCode: 201, Body: []byte(`{"id":"abc"}`), ContentType: "application/json"}, nil
}

type auditRecorder struct {
	audits []int
}

func (a *auditRecorder) PublishCandidates(context.Context, *models.ScanResult) error { return nil }
func (a *auditRecorder) PublishOrderAudit(_ context.Context, _ string, statusCode int, _ []byte) error {
	a.audits = append(a.audits, statusCode)
	return nil
}

func clearGuardEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"REQUIRE_MARKET_OPEN", "MAX_OPEN_POSITIONS", "MAX_RISK_PER_TRADE_PCT",
		"MAX_EXPOSURE_PCT", "ORDER_COOLDOWN_MINUTES", "MAX_DAILY_LOSS_PCT"} {
		t.Setenv(k, "")
	}
}

func orderBody(t *testing.T, o map[string]interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestOrderGateForwardsVerbatimOnPass(t *testing.T) {
	clearGuardEnv(t)
	b := &gateBroker{acct: models.Account{Equity: 100000}}
	rec := &auditRecorder{}
	gate := NewOrderGate(&appcfg.Config{}, b, nil, rec, nil)

	raw := orderBody(t, map[string]interface{}{
		"symbol": "AAPL", "side": "buy", "qty": "10", "custom_field": "kept",
	})
	dec, err := gate.Submit(context.Background(), raw)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !dec.Allowed || dec.Upstream.StatusCode != 201 {
		t.Fatalf("decision: %+v", dec)
	}
	if len(b.submitted) != 1 || string(b.submitted[0]) != string(raw) {
		t.Fatalf("payload must be forwarded unmodified")
	}
	if len(rec.audits) != 1 || rec.audits[0] != 200 {
		t.Fatalf("audits: %v", rec.audits)
	}
}

func TestOrderGateAcceptsNumericQty(t *testing.T) {
	clearGuardEnv(t)
	b := &gateBroker{acct: models.Account{Equity: 100000}}
	gate := NewOrderGate(&appcfg.Config{}, b, nil, nil, nil)

	// bare-number encoding, the way hand-built clients send it
	raw := []byte(`{"symbol":"AAPL","side":"buy","qty":10}`)
	dec, err := gate.Submit(context.Background(), raw)
	if err != nil {
		t.Fatalf("numeric qty must decode: %v", err)
	}
	if !dec.Allowed || len(b.submitted) != 1 {
		t.Fatalf("decision: %+v, submitted %d", dec, len(b.submitted))
	}
	if string(b.submitted[0]) != string(raw) {
		t.Fatalf("payload must be forwarded unmodified")
	}
}

func TestOrderGateRejectsAndNamesRule(t *testing.T) {
	clearGuardEnv(t)
	t.Setenv("MAX_OPEN_POSITIONS", "1")
	b := &gateBroker{positions: []models.Position{{Symbol: "MSFT"}}}
	rec := &auditRecorder{}
	gate := NewOrderGate(&appcfg.Config{}, b, nil, rec, nil)

	dec, err := gate.Submit(context.Background(), orderBody(t, map[string]interface{}{
		"symbol": "AAPL", "side": "buy", "qty": "10",
	}))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if dec.Allowed || dec.Rule != "max_positions" {
		t.Fatalf("decision: %+v", dec)
	}
	if len(b.submitted) != 0 {
		t.Fatalf("rejected order must not reach the brokerage")
	}
	if len(rec.audits) != 1 || rec.audits[0] != 422 {
		t.Fatalf("audits: %v", rec.audits)
	}
}

func TestOrderGateEnvReadPerRequest(t *testing.T) {
	clearGuardEnv(t)
	b := &gateBroker{positions: []models.Position{{Symbol: "MSFT"}}}
	gate := NewOrderGate(&appcfg.Config{}, b, nil, nil, nil)
	body := orderBody(t, map[string]interface{}{"symbol": "AAPL", "side": "buy", "qty": "1"})

	dec, err := gate.Submit(context.Background(), body)
	if err != nil || !dec.Allowed {
		t.Fatalf("no caps set, order should pass: %+v %v", dec, err)
	}

	t.Setenv("MAX_OPEN_POSITIONS", "1")
	dec, err = gate.Submit(context.Background(), body)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("cap set between requests must apply without restart")
	}
}

func TestOrderGateValidation(t *testing.T) {
	clearGuardEnv(t)
	gate := NewOrderGate(&appcfg.Config{}, &gateBroker{}, nil, nil, nil)

	cases := [][]byte{
		[]byte("not json"),
		orderBody(t, map[string]interface{}{"side": "buy", "qty": "1"}),
		orderBody(t, map[string]interface{}{"symbol": "AAPL", "side": "hold", "qty": "1"}),
		orderBody(t, map[string]interface{}{"symbol": "AAPL", "side": "buy", "qty": "0"}),
	}
	for i, raw := range cases {
		_, err := gate.Submit(context.Background(), raw)
		var appErr *xhttp.AppError
		if err == nil || !errors.As(err, &appErr) || appErr.Status != 400 {
			t.Fatalf("case %d: expected 400 app error, got %v", i, err)
		}
	}
}
