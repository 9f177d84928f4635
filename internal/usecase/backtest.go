package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TradeScan/internal/domain/models"
	drepo "TradeScan/internal/domain/repository"
	domsvc "TradeScan/internal/domain/service"
	icache "TradeScan/internal/service/cache"
	"TradeScan/internal/services/features"
	applogger "TradeScan/pkg/logger"
)

const (
	maxBacktestBars = 2000
	maxDailyBars    = 400
	minWarmupBars   = 80
	warmupFraction  = 5 // start at len/5 when that exceeds the minimum
)

// ProbeThresholds is the fixed summary grid. Membership is cumulative:
// a bar whose score is 75 contributes to every bucket up to 70.
var ProbeThresholds = []float64{30, 40, 50, 60, 70, 80, 90}

// BacktestEngine replays a symbol's history bar by bar, recomputing the
// score at each step over the prefix (never incrementally; the scoring
// engine's internal state dependencies are unspecified) and measuring
// forward return at a fixed horizon.
type BacktestEngine struct {
	bars   drepo.BarSource
	scorer domsvc.Scorer
	cache  *icache.TTLCache
	l      *applogger.Logger
}

func NewBacktestEngine(bars drepo.BarSource, scorer domsvc.Scorer, cache *icache.TTLCache, l *applogger.Logger) *BacktestEngine {
	return &BacktestEngine{bars: bars, scorer: scorer, cache: cache, l: l}
}

// BacktestParams are the normalized inputs of one replay.
type BacktestParams struct {
	Symbols        []string
	Timeframe      drepo.Timeframe
	Limit          int
	Threshold      float64
	Horizon        int
	DailyFilter    string // "", "bull", "bear"
	IncludeRegimes bool
}

func (p *BacktestParams) clamp() {
	if p.Limit <= 0 || p.Limit > maxBacktestBars {
		p.Limit = maxBacktestBars
	}
	if p.Horizon <= 0 {
		p.Horizon = 10
	}
}

// dailyPoint is one daily bar's precomputed regime. States are derived
// cumulatively: each day's score is computed over the daily prefix up
// to and including that day.
type dailyPoint struct {
	time   int64
	regime string // "bull", "bear", or ""
}

// Events replays every symbol and emits one event per bar whose score
// crosses the threshold with a horizon-ahead bar in range.
func (e *BacktestEngine) Events(ctx context.Context, p BacktestParams) ([]models.BacktestEvent, error) {
	p.clamp()
	events := []models.BacktestEvent{}
	for _, symbol := range p.Symbols {
		evs, err := e.eventsForSymbol(ctx, symbol, p)
		if err != nil {
			// per-symbol transient failures leave the symbol out
			if e.l != nil {
				e.l.Warn("backtest symbol failed", applogger.String("symbol", symbol), applogger.Error(err))
			}
			continue
		}
		events = append(events, evs...)
	}
	return events, nil
}

func (e *BacktestEngine) eventsForSymbol(ctx context.Context, symbol string, p BacktestParams) ([]models.BacktestEvent, error) {
	bars, err := e.bars.GetBars(ctx, symbol, p.Timeframe, p.Limit)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}

	var dailies []dailyPoint
	if p.DailyFilter != "" {
		dailies, err = e.dailyStates(ctx, symbol)
		if err != nil {
			return nil, err
		}
	}

	var events []models.BacktestEvent
	for i := warmupStart(len(bars)); i < len(bars); i++ {
		state, err := e.scorer.Score(ctx, symbol, bars[:i+1])
		if err != nil {
			return nil, err
		}
		if p.DailyFilter != "" && regimeAt(dailies, bars[i].Time) != p.DailyFilter {
			continue
		}
		if state.Score < p.Threshold || i+p.Horizon >= len(bars) {
			continue
		}
		events = append(events, models.BacktestEvent{
			Symbol:           symbol,
			Time:             time.Unix(bars[i].Time, 0).UTC().Format(time.RFC3339),
			EntryPrice:       bars[i].Close,
			Score:            state.Score,
			ForwardReturnPct: features.ForwardReturnPct(bars[i].Close, bars[i+p.Horizon].Close),
		})
	}
	return events, nil
}

// Summary replays every symbol and aggregates forward returns into the
// (symbol, regime, threshold) grid. The all/bull/bear curves are
// independent: a bar in a bull regime contributes to both "all" and
// "bull" buckets.
func (e *BacktestEngine) Summary(ctx context.Context, p BacktestParams) ([]models.BacktestSummaryRow, error) {
	p.clamp()
	rows := []models.BacktestSummaryRow{}
	for _, symbol := range p.Symbols {
		sr, err := e.summaryForSymbol(ctx, symbol, p)
		if err != nil {
			if e.l != nil {
				e.l.Warn("backtest symbol failed", applogger.String("symbol", symbol), applogger.Error(err))
			}
			continue
		}
		rows = append(rows, sr...)
	}
	return rows, nil
}

func (e *BacktestEngine) summaryForSymbol(ctx context.Context, symbol string, p BacktestParams) ([]models.BacktestSummaryRow, error) {
	bars, err := e.bars.GetBars(ctx, symbol, p.Timeframe, p.Limit)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}

	var dailies []dailyPoint
	if p.DailyFilter != "" || p.IncludeRegimes {
		dailies, err = e.dailyStates(ctx, symbol)
		if err != nil {
			return nil, err
		}
	}

	regimes := []string{models.RegimeAll}
	if p.IncludeRegimes {
		regimes = append(regimes, models.RegimeBull, models.RegimeBear)
	}
	buckets := map[string]map[float64][]float64{}
	for _, r := range regimes {
		buckets[r] = map[float64][]float64{}
	}

	for i := warmupStart(len(bars)); i < len(bars); i++ {
		if i+p.Horizon >= len(bars) {
			break
		}
		state, err := e.scorer.Score(ctx, symbol, bars[:i+1])
		if err != nil {
			return nil, err
		}
		barRegime := ""
		if dailies != nil {
			barRegime = regimeAt(dailies, bars[i].Time)
		}
		if p.DailyFilter != "" && barRegime != p.DailyFilter {
			continue
		}
		fr := features.ForwardReturnPct(bars[i].Close, bars[i+p.Horizon].Close)
		for _, probe := range ProbeThresholds {
			if state.Score < probe {
				continue
			}
			buckets[models.RegimeAll][probe] = append(buckets[models.RegimeAll][probe], fr)
			if p.IncludeRegimes && (barRegime == models.RegimeBull || barRegime == models.RegimeBear) {
				buckets[barRegime][probe] = append(buckets[barRegime][probe], fr)
			}
		}
	}

	var rows []models.BacktestSummaryRow
	for _, regime := range regimes {
		for _, probe := range ProbeThresholds {
			sample := buckets[regime][probe]
			rows = append(rows, models.BacktestSummaryRow{
				Symbol:          symbol,
				Regime:          regime,
				Threshold:       probe,
				Events:          len(sample),
				WinRatePct:      features.WinRatePct(sample),
				AvgReturnPct:    features.Mean(sample),
				MedianReturnPct: features.Median(sample),
			})
		}
	}
	return rows, nil
}

// dailyStates precomputes the regime for every daily-bar prefix.
// Quadratic by construction and bounded by the daily cap.
func (e *BacktestEngine) dailyStates(ctx context.Context, symbol string) ([]dailyPoint, error) {
	if v, ok := e.cache.Get("btdaily", symbol, drepo.CacheTTL(drepo.TF1Day)); ok {
		return v.([]dailyPoint), nil
	}
	daily, err := e.bars.GetBars(ctx, symbol, drepo.TF1Day, maxDailyBars)
	if err != nil {
		return nil, err
	}
	out := make([]dailyPoint, 0, len(daily))
	for i := range daily {
		state, err := e.scorer.Score(ctx, symbol, daily[:i+1])
		if err != nil {
			return nil, err
		}
		regime := ""
		switch {
		case state.PivotRegime == models.Bullish && state.IchimokuRegime == models.Bullish:
			regime = models.RegimeBull
		case state.PivotRegime == models.Bearish && state.IchimokuRegime == models.Bearish:
			regime = models.RegimeBear
		}
		out = append(out, dailyPoint{time: daily[i].Time, regime: regime})
	}
	e.cache.Set("btdaily", symbol, out)
	return out, nil
}

// regimeAt finds the most recent daily point at or before t. Linear
// forward scan with early break; bounded by the daily cap.
// TODO: switch to a binary search if the daily cap is ever raised.
func regimeAt(dailies []dailyPoint, t int64) string {
	regime := ""
	for _, d := range dailies {
		if d.time > t {
			break
		}
		regime = d.regime
	}
	return regime
}

// warmupStart skips early indexes so the first scores are computed
// over a meaningful window.
func warmupStart(n int) int {
	start := n / warmupFraction
	if start < minWarmupBars {
		start = minWarmupBars
	}
	return start
}

// EventsCSV renders events as the flat batch-backtest CSV.
func EventsCSV(events []models.BacktestEvent) string {
	var b strings.Builder
	b.WriteString("symbol,time,close,score,forwardReturn\n")
	for _, ev := range events {
		fmt.Fprintf(&b, "%s,%s,%g,%g,%g\n", ev.Symbol, ev.Time, ev.EntryPrice, ev.Score, ev.ForwardReturnPct)
	}
	return b.String()
}

// SummaryCSV renders summary rows as CSV.
func SummaryCSV(rows []models.BacktestSummaryRow) string {
	var b strings.Builder
	b.WriteString("symbol,regime,threshold,events,winRate,avgReturn,medianReturn\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s,%s,%g,%d,%g,%g,%g\n", r.Symbol, r.Regime, r.Threshold, r.Events, r.WinRatePct, r.AvgReturnPct, r.MedianReturnPct)
	}
	return b.String()
}
