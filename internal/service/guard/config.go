package guard

import (
	"os"
	"strconv"

	appcfg "TradeScan/pkg/config"
)

// Config holds one cap per guardrail. A zero value disables that gate
// entirely; it is never interpreted as a cap of zero.
type Config struct {
	RequireMarketOpen  bool
	MaxOpenPositions   int
	MaxRiskPerTradePct float64
	MaxExposurePct     float64
	CooldownMinutes    int
	MaxDailyLossPct    float64
}

// FromEnv builds the guardrail configuration from the environment,
// falling back to the YAML values. It is called once per order request
// so an operator change takes effect on the next request.
func FromEnv(cfg *appcfg.Config) Config {
	g := Config{
		RequireMarketOpen:  cfg.Guardrails.RequireMarketOpen,
		MaxOpenPositions:   cfg.Guardrails.MaxOpenPositions,
		MaxRiskPerTradePct: cfg.Guardrails.MaxRiskPerTradePct,
		MaxExposurePct:     cfg.Guardrails.MaxExposurePct,
		CooldownMinutes:    cfg.Guardrails.CooldownMinutes,
		MaxDailyLossPct:    cfg.Guardrails.MaxDailyLossPct,
	}
	if v := os.Getenv("REQUIRE_MARKET_OPEN"); v != "" {
		g.RequireMarketOpen = v == "1" || v == "true"
	}
	if v, ok := envInt("MAX_OPEN_POSITIONS"); ok {
		g.MaxOpenPositions = v
	}
	if v, ok := envFloat("MAX_RISK_PER_TRADE_PCT"); ok {
		g.MaxRiskPerTradePct = v
	}
	if v, ok := envFloat("MAX_EXPOSURE_PCT"); ok {
		g.MaxExposurePct = v
	}
	if v, ok := envInt("ORDER_COOLDOWN_MINUTES"); ok {
		g.CooldownMinutes = v
	}
	if v, ok := envFloat("MAX_DAILY_LOSS_PCT"); ok {
		g.MaxDailyLossPct = v
	}
	return g
}

func envInt(key string) (int, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envFloat(key string) (float64, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
