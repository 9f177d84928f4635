package guard

import (
	"context"
	"fmt"
	"math"
	"time"

	"TradeScan/internal/service/alpaca"
)

// Result is the tagged outcome of one guardrail: pass, or reject with
// a human-readable reason naming the rule and the computed value vs
// its limit.
type Result struct {
	OK     bool
	Reason string
}

func pass() Result { return Result{OK: true} }

func reject(format string, args ...interface{}) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Guardrail is one independently configured admission-control rule.
// Check errors are infrastructure failures, not rejections.
type Guardrail struct {
	Name  string
	Check func(ctx context.Context, ec *EvalContext) (Result, error)
}

// Chain builds the guardrail sequence for cfg. Order is part of the
// contract: a later gate may reuse data fetched by an earlier one, and
// the first failing gate's reason is the one surfaced. Disabled gates
// are simply not in the chain.
func Chain(cfg Config) []Guardrail {
	var chain []Guardrail
	if cfg.RequireMarketOpen {
		chain = append(chain, marketOpenGate())
	}
	if cfg.MaxOpenPositions > 0 {
		chain = append(chain, maxPositionsGate(cfg.MaxOpenPositions))
	}
	if cfg.MaxRiskPerTradePct > 0 {
		chain = append(chain, maxRiskGate(cfg.MaxRiskPerTradePct))
	}
	if cfg.MaxExposurePct > 0 {
		chain = append(chain, maxExposureGate(cfg.MaxExposurePct))
	}
	if cfg.CooldownMinutes > 0 {
		chain = append(chain, cooldownGate(cfg.CooldownMinutes))
	}
	if cfg.MaxDailyLossPct > 0 {
		chain = append(chain, dailyLossGate(cfg.MaxDailyLossPct))
	}
	return chain
}

// Evaluate runs the chain sequentially, short-circuiting at the first
// failure. Returns the failing gate's name alongside its result.
func Evaluate(ctx context.Context, chain []Guardrail, ec *EvalContext) (Result, string, error) {
	for _, g := range chain {
		res, err := g.Check(ctx, ec)
		if err != nil {
			return Result{}, g.Name, fmt.Errorf("guardrail %s: %w", g.Name, err)
		}
		if !res.OK {
			return res, g.Name, nil
		}
	}
	return pass(), "", nil
}

func marketOpenGate() Guardrail {
	return Guardrail{
		Name: "market_open",
		Check: func(ctx context.Context, ec *EvalContext) (Result, error) {
			clock, err := ec.Clock(ctx)
			if err != nil {
				return Result{}, err
			}
			if !clock.IsOpen {
				return reject("market is closed"), nil
			}
			return pass(), nil
		},
	}
}

func maxPositionsGate(limit int) Guardrail {
	return Guardrail{
		Name: "max_positions",
		Check: func(ctx context.Context, ec *EvalContext) (Result, error) {
			ps, err := ec.Positions(ctx)
			if err != nil {
				return Result{}, err
			}
			if len(ps) >= limit {
				return reject("open positions %d >= limit %d", len(ps), limit), nil
			}
			return pass(), nil
		},
	}
}

func maxRiskGate(capPct float64) Guardrail {
	return Guardrail{
		Name: "max_risk_per_trade",
		Check: func(ctx context.Context, ec *EvalContext) (Result, error) {
			stop := ec.Order.StopPrice()
			if stop <= 0 {
				return reject("stop price required when max risk per trade is enforced"), nil
			}
			entry, err := ec.EntryPrice(ctx)
			if err != nil {
				return Result{}, err
			}
			acct, err := ec.Account(ctx)
			if err != nil {
				return Result{}, err
			}
			if acct.Equity <= 0 {
				return reject("account equity unavailable"), nil
			}
			riskPerShare := entry - stop
			if ec.Order.Side != "buy" {
				riskPerShare = stop - entry
			}
			if riskPerShare < 0 {
				riskPerShare = 0
			}
			riskPct := riskPerShare * float64(ec.Order.Qty) / acct.Equity * 100
			if riskPct > capPct {
				return reject("trade risk %.2f%% exceeds limit %.2f%%", riskPct, capPct), nil
			}
			return pass(), nil
		},
	}
}

func maxExposureGate(capPct float64) Guardrail {
	return Guardrail{
		Name: "max_exposure",
		Check: func(ctx context.Context, ec *EvalContext) (Result, error) {
			ps, err := ec.Positions(ctx)
			if err != nil {
				return Result{}, err
			}
			acct, err := ec.Account(ctx)
			if err != nil {
				return Result{}, err
			}
			if acct.Equity <= 0 {
				return reject("account equity unavailable"), nil
			}
			gross := 0.0
			for _, p := range ps {
				gross += math.Abs(p.MarketValue)
			}
			exposurePct := gross / acct.Equity * 100
			if exposurePct > capPct {
				return reject("gross exposure %.2f%% exceeds limit %.2f%%", exposurePct, capPct), nil
			}
			return pass(), nil
		},
	}
}

func cooldownGate(minutes int) Guardrail {
	return Guardrail{
		Name: "cooldown",
		Check: func(ctx context.Context, ec *EvalContext) (Result, error) {
			last, err := ec.LatestOrder(ctx)
			if err != nil {
				return Result{}, err
			}
			if last == nil {
				return pass(), nil
			}
			at, ok := alpaca.ParseOrderTime(last.SubmittedAt)
			if !ok {
				return pass(), nil
			}
			elapsed := time.Since(at)
			window := time.Duration(minutes) * time.Minute
			if elapsed < window {
				return reject("last order %.1f minutes ago, cooldown is %d minutes", elapsed.Minutes(), minutes), nil
			}
			return pass(), nil
		},
	}
}

func dailyLossGate(capPct float64) Guardrail {
	return Guardrail{
		Name: "max_daily_loss",
		Check: func(ctx context.Context, ec *EvalContext) (Result, error) {
			acct, err := ec.Account(ctx)
			if err != nil {
				return Result{}, err
			}
			if acct.LastEquity <= 0 {
				return pass(), nil
			}
			changePct := (acct.Equity - acct.LastEquity) / acct.LastEquity * 100
			if changePct < -capPct {
				return reject("daily equity change %.2f%% breaches loss cap %.2f%%", changePct, capPct), nil
			}
			return pass(), nil
		},
	}
}
