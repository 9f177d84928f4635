package guard

import (
	"context"
	"strings"
	"testing"
	"time"

	"TradeScan/internal/domain/models"
	drepo "TradeScan/internal/domain/repository"
	appcfg "TradeScan/pkg/config"
)

func newAppConfig() *appcfg.Config {
	cfg := &appcfg.Config{}
	cfg.Guardrails.CooldownMinutes = 9
	return cfg
}

type fakeBroker struct {
	acct      models.Account
	positions []models.Position
	clock     models.Clock
	orders    []models.OrderStub
	lastTrade float64

	positionsCalls int
	clockCalls     int
}

func (f *fakeBroker) Account(context.Context) (models.Account, error) { return f.acct, nil }
func (f *fakeBroker) Positions(context.Context) ([]models.Position, error) {
	f.positionsCalls++
	return f.positions, nil
}
func (f *fakeBroker) Clock(context.Context) (models.Clock, error) {
	f.clockCalls++
	return f.clock, nil
}
func (f *fakeBroker) LatestOrders(_ context.Context, limit int) ([]models.OrderStub, error) {
	if len(f.orders) > limit {
		return f.orders[:limit], nil
	}
	return f.orders, nil
}
func (f *fakeBroker) LatestTradePrice(context.Context, string) (float64, error) {
	return f.lastTrade, nil
}
func (f *fakeBroker) SubmitOrder(_ context.Context, raw []byte) (*drepo.BrokerResponse, error) {
	return &drepo.BrokerResponse{StatusCode: 200, Body: raw, ContentType: "application/json"}, nil
}

func buyOrder(qty, entry, stop float64) *models.Order {
	o := &models.Order{Symbol: "AAPL", Side: "buy", Qty: models.Numeric(qty), Entry: models.Numeric(entry)}
	if stop > 0 {
		o.StopLoss = &models.BracketLeg{StopPrice: models.Numeric(stop)}
	}
	return o
}

func TestChainOrderIsFixed(t *testing.T) {
	cfg := Config{
		RequireMarketOpen:  true,
		MaxOpenPositions:   5,
		MaxRiskPerTradePct: 1,
		MaxExposurePct:     50,
		CooldownMinutes:    5,
		MaxDailyLossPct:    3,
	}
	chain := Chain(cfg)
	want := []string{"market_open", "max_positions", "max_risk_per_trade", "max_exposure", "cooldown", "max_daily_loss"}
	if len(chain) != len(want) {
		t.Fatalf("chain length %d, want %d", len(chain), len(want))
	}
	for i, g := range chain {
		if g.Name != want[i] {
			t.Fatalf("gate %d is %s, want %s", i, g.Name, want[i])
		}
	}
}

func TestZeroConfigDisablesEverything(t *testing.T) {
	chain := Chain(Config{})
	if len(chain) != 0 {
		t.Fatalf("expected empty chain, got %d gates", len(chain))
	}
	res, rule, err := Evaluate(context.Background(), chain, nil)
	if err != nil || !res.OK || rule != "" {
		t.Fatalf("empty chain must pass: %+v %q %v", res, rule, err)
	}
}

func TestMarketOpenShortCircuits(t *testing.T) {
	b := &fakeBroker{clock: models.Clock{IsOpen: false}, positions: make([]models.Position, 10)}
	chain := Chain(Config{RequireMarketOpen: true, MaxOpenPositions: 1})
	ec := NewEvalContext(buyOrder(1, 100, 99), b, nil)
	res, rule, err := Evaluate(context.Background(), chain, ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK || rule != "market_open" {
		t.Fatalf("expected market_open rejection, got %+v %q", res, rule)
	}
	if b.positionsCalls != 0 {
		t.Fatalf("later gates must not run after a rejection")
	}
}

func TestMaxPositionsReject(t *testing.T) {
	b := &fakeBroker{positions: make([]models.Position, 3)}
	chain := Chain(Config{MaxOpenPositions: 3})
	res, rule, err := Evaluate(context.Background(), chain, NewEvalContext(buyOrder(1, 100, 99), b, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK || rule != "max_positions" {
		t.Fatalf("expected max_positions rejection, got %+v %q", res, rule)
	}
}

func TestMaxRiskRequiresStop(t *testing.T) {
	b := &fakeBroker{acct: models.Account{Equity: 100000}}
	chain := Chain(Config{MaxRiskPerTradePct: 1})
	res, rule, _ := Evaluate(context.Background(), chain, NewEvalContext(buyOrder(10, 100, 0), b, nil))
	if res.OK || rule != "max_risk_per_trade" {
		t.Fatalf("order without stop must be rejected, got %+v %q", res, rule)
	}
	if !strings.Contains(res.Reason, "stop") {
		t.Fatalf("reason should name the missing stop: %q", res.Reason)
	}
}

func TestMaxRiskComputation(t *testing.T) {
	b := &fakeBroker{acct: models.Account{Equity: 100000}}
	chain := Chain(Config{MaxRiskPerTradePct: 1})

	// risk = (100-99)*100 / 100000 = 0.1% -> pass
	res, _, err := Evaluate(context.Background(), chain, NewEvalContext(buyOrder(100, 100, 99), b, nil))
	if err != nil || !res.OK {
		t.Fatalf("0.1%% risk should pass: %+v %v", res, err)
	}

	// risk = (100-99)*2000 / 100000 = 2% -> reject
	res, rule, err := Evaluate(context.Background(), chain, NewEvalContext(buyOrder(2000, 100, 99), b, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK || rule != "max_risk_per_trade" {
		t.Fatalf("2%% risk should be rejected, got %+v %q", res, rule)
	}
}

func TestMaxRiskSellSide(t *testing.T) {
	b := &fakeBroker{acct: models.Account{Equity: 100000}}
	chain := Chain(Config{MaxRiskPerTradePct: 1})
	o := &models.Order{Symbol: "AAPL", Side: "sell", Qty: 2000, Entry: 100,
		StopLoss: &models.BracketLeg{StopPrice: 101}}
	res, rule, _ := Evaluate(context.Background(), chain, NewEvalContext(o, b, nil))
	if res.OK || rule != "max_risk_per_trade" {
		t.Fatalf("short risk uses stop-entry, got %+v %q", res, rule)
	}
}

func TestExposureReusesPositionsFetch(t *testing.T) {
	b := &fakeBroker{
		acct:      models.Account{Equity: 100000},
		positions: []models.Position{{Symbol: "MSFT", Qty: 10, MarketValue: 30000}},
	}
	chain := Chain(Config{MaxOpenPositions: 5, MaxExposurePct: 50})
	res, _, err := Evaluate(context.Background(), chain, NewEvalContext(buyOrder(1, 100, 99), b, nil))
	if err != nil || !res.OK {
		t.Fatalf("30%% exposure under 50%% cap should pass: %+v %v", res, err)
	}
	if b.positionsCalls != 1 {
		t.Fatalf("positions fetched %d times, want 1", b.positionsCalls)
	}
}

func TestExposureCountsAbsoluteValue(t *testing.T) {
	b := &fakeBroker{
		acct: models.Account{Equity: 100000},
		positions: []models.Position{
			{Symbol: "MSFT", MarketValue: 30000},
			{Symbol: "TSLA", MarketValue: -30000}, // short leg still counts
		},
	}
	chain := Chain(Config{MaxExposurePct: 50})
	res, rule, _ := Evaluate(context.Background(), chain, NewEvalContext(buyOrder(1, 100, 99), b, nil))
	if res.OK || rule != "max_exposure" {
		t.Fatalf("gross 60%% over 50%% cap must reject, got %+v %q", res, rule)
	}
}

func TestCooldown(t *testing.T) {
	recent := time.Now().UTC().Add(-1 * time.Minute).Format(time.RFC3339Nano)
	b := &fakeBroker{orders: []models.OrderStub{{ID: "1", SubmittedAt: recent}}}
	chain := Chain(Config{CooldownMinutes: 5})
	res, rule, _ := Evaluate(context.Background(), chain, NewEvalContext(buyOrder(1, 100, 99), b, nil))
	if res.OK || rule != "cooldown" {
		t.Fatalf("order 1m ago inside 5m window must reject, got %+v %q", res, rule)
	}

	old := time.Now().UTC().Add(-10 * time.Minute).Format(time.RFC3339Nano)
	b.orders[0].SubmittedAt = old
	res, _, err := Evaluate(context.Background(), chain, NewEvalContext(buyOrder(1, 100, 99), b, nil))
	if err != nil || !res.OK {
		t.Fatalf("order outside the window should pass: %+v %v", res, err)
	}
}

func TestDailyLoss(t *testing.T) {
	b := &fakeBroker{acct: models.Account{Equity: 90000, LastEquity: 100000}}
	chain := Chain(Config{MaxDailyLossPct: 5})
	res, rule, _ := Evaluate(context.Background(), chain, NewEvalContext(buyOrder(1, 100, 99), b, nil))
	if res.OK || rule != "max_daily_loss" {
		t.Fatalf("-10%% day over a 5%% cap must reject, got %+v %q", res, rule)
	}

	b.acct = models.Account{Equity: 98000, LastEquity: 100000}
	res, _, err := Evaluate(context.Background(), chain, NewEvalContext(buyOrder(1, 100, 99), b, nil))
	if err != nil || !res.OK {
		t.Fatalf("-2%% day under a 5%% cap should pass: %+v %v", res, err)
	}
}

type fakeTape map[string]float64

func (f fakeTape) Last(symbol string) (float64, bool) {
	p, ok := f[symbol]
	return p, ok
}

func TestEntryPricePreference(t *testing.T) {
	b := &fakeBroker{lastTrade: 95}
	tape := fakeTape{"AAPL": 97}

	// explicit entry wins
	ec := NewEvalContext(buyOrder(1, 100, 0), b, tape)
	p, err := ec.EntryPrice(context.Background())
	if err != nil || p != 100 {
		t.Fatalf("explicit entry: got %v %v", p, err)
	}

	// then the live tape
	ec = NewEvalContext(buyOrder(1, 0, 0), b, tape)
	if p, _ = ec.EntryPrice(context.Background()); p != 97 {
		t.Fatalf("tape price: got %v", p)
	}

	// then the broker lookup
	ec = NewEvalContext(&models.Order{Symbol: "MSFT", Side: "buy", Qty: 1}, b, tape)
	if p, _ = ec.EntryPrice(context.Background()); p != 95 {
		t.Fatalf("broker price: got %v", p)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MAX_OPEN_POSITIONS", "7")
	t.Setenv("MAX_RISK_PER_TRADE_PCT", "2.5")
	t.Setenv("REQUIRE_MARKET_OPEN", "true")
	cfg := FromEnv(newAppConfig())
	if cfg.MaxOpenPositions != 7 || cfg.MaxRiskPerTradePct != 2.5 || !cfg.RequireMarketOpen {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.CooldownMinutes != 9 {
		t.Fatalf("yaml fallback lost: %+v", cfg)
	}
}
