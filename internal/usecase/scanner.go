package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"TradeScan/internal/domain/models"
	drepo "TradeScan/internal/domain/repository"
	domsvc "TradeScan/internal/domain/service"
	icache "TradeScan/internal/service/cache"
	"TradeScan/internal/service/alpaca"
	applogger "TradeScan/pkg/logger"
)

// ConsensusBonus is added to a candidate's score when the next-coarser
// timeframe agrees with its direction. A confluence bonus, not a
// weighted blend.
const ConsensusBonus = 10.0

const defaultScanWorkers = 8

// Scanner concurrently evaluates a symbol universe against the scoring
// engine, applies consensus and daily-regime filters, and ranks the
// survivors.
type Scanner struct {
	bars     drepo.BarSource
	scorer   domsvc.Scorer
	cache    *icache.TTLCache
	universe []string
	workers  int
	l        *applogger.Logger
}

func NewScanner(bars drepo.BarSource, scorer domsvc.Scorer, cache *icache.TTLCache, universe []string, workers int, l *applogger.Logger) *Scanner {
	if workers <= 0 {
		workers = defaultScanWorkers
	}
	return &Scanner{bars: bars, scorer: scorer, cache: cache, universe: universe, workers: workers, l: l}
}

// ScanParams are the normalized inputs of one scan pass.
type ScanParams struct {
	Timeframe        drepo.Timeframe
	Limit            int
	Top              int
	Threshold        float64
	EnforceDaily     bool
	ReturnAll        bool
	RequireConsensus bool
	Symbols          []string
}

// ResolveUniverse picks the symbol universe: the explicit request
// parameter wins, then the SCAN_SYMBOLS environment default, then the
// configured list. Environment reads happen per request by design.
func (s *Scanner) ResolveUniverse(explicit []string) []string {
	if len(explicit) > 0 {
		return explicit
	}
	if v := os.Getenv("SCAN_SYMBOLS"); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, strings.ToUpper(p))
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return s.universe
}

// CacheKey is a canonical serialization of the normalized parameters.
// Re-deriving the same key for the same inputs makes concurrent cache
// writers idempotent.
func (p ScanParams) CacheKey() string {
	return fmt.Sprintf("scan:tf=%s:limit=%d:top=%d:thr=%g:daily=%t:all=%t:cons=%t:syms=%s",
		p.Timeframe, p.Limit, p.Top, p.Threshold, p.EnforceDaily, p.ReturnAll, p.RequireConsensus,
		strings.Join(p.Symbols, ","))
}

// symbolOutcome is the tagged per-symbol result of the fan-out: a
// candidate, a counted skip, or a swallowed error. Returning it through
// the join keeps one symbol's failure from cancelling sibling work.
type symbolOutcome struct {
	idx  int
	cand *models.ScanCandidate
	skip string // "", "neutral", "consensus", "daily", "threshold", "error"
	err  error
}

const (
	skipNeutral   = "neutral"
	skipConsensus = "consensus"
	skipDaily     = "daily"
	skipThreshold = "threshold"
	skipError     = "error"
)

// Scan runs one pass over params.Symbols. Per-symbol upstream failures
// are swallowed; a missing-credentials configuration error fails the
// whole request.
func (s *Scanner) Scan(ctx context.Context, p ScanParams) (*models.ScanResult, error) {
	daily := map[string]models.DailyRegime{}
	if p.EnforceDaily {
		var err error
		daily, err = s.prefetchDaily(ctx, p.Symbols)
		if err != nil {
			return nil, err
		}
	}

	outcomes := make([]symbolOutcome, len(p.Symbols))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, sym := range p.Symbols {
		wg.Add(1)
		go func(idx int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[idx] = s.evalSymbol(ctx, idx, symbol, p, daily)
		}(i, sym)
	}
	wg.Wait()

	res := &models.ScanResult{
		Timeframe:    string(p.Timeframe),
		Threshold:    p.Threshold,
		EnforceDaily: p.EnforceDaily,
		UniverseSize: len(p.Symbols),
		Longs:        []models.ScanCandidate{},
		Shorts:       []models.ScanCandidate{},
	}

	var accepted []symbolOutcome
	for _, o := range outcomes {
		switch o.skip {
		case "":
			if o.cand != nil {
				accepted = append(accepted, o)
			}
		case skipNeutral:
			res.Counts.NeutralSkipped++
		case skipConsensus:
			res.Counts.ConsensusBlocked++
		case skipDaily:
			res.Counts.DailyBlocked++
		case skipThreshold:
			res.Counts.ThresholdRejected++
		case skipError:
			if errors.Is(o.err, alpaca.ErrMissingCredentials) {
				return nil, o.err
			}
			if s.l != nil {
				s.l.Debug("scan symbol skipped", applogger.Int("idx", o.idx), applogger.Error(o.err))
			}
		}
	}

	// Stable sort desc by score; ties keep universe resolution order
	// (outcomes are already in universe order).
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].cand.Score > accepted[j].cand.Score
	})

	var longs, shorts []models.ScanCandidate
	for _, o := range accepted {
		if o.cand.Direction == models.DirectionLong {
			longs = append(longs, *o.cand)
		} else {
			shorts = append(shorts, *o.cand)
		}
	}
	res.Counts.AcceptedLongs = len(longs)
	res.Counts.AcceptedShorts = len(shorts)

	if !p.ReturnAll && p.Top > 0 {
		if len(longs) > p.Top {
			longs = longs[:p.Top]
		}
		if len(shorts) > p.Top {
			shorts = shorts[:p.Top]
		}
	}
	if longs != nil {
		res.Longs = longs
	}
	if shorts != nil {
		res.Shorts = shorts
	}
	return res, nil
}

func (s *Scanner) evalSymbol(ctx context.Context, idx int, symbol string, p ScanParams, daily map[string]models.DailyRegime) symbolOutcome {
	bars, err := s.fetchBars(ctx, symbol, p.Timeframe, p.Limit)
	if err != nil {
		return symbolOutcome{idx: idx, skip: skipError, err: err}
	}
	if len(bars) == 0 {
		return symbolOutcome{idx: idx, skip: skipError, err: fmt.Errorf("no bars for %s", symbol)}
	}

	state, err := s.scorer.Score(ctx, symbol, bars)
	if err != nil {
		return symbolOutcome{idx: idx, skip: skipError, err: err}
	}
	direction := state.Direction()
	if direction == "" {
		return symbolOutcome{idx: idx, skip: skipNeutral}
	}
	score := state.Score

	if p.RequireConsensus {
		coarser := drepo.NextCoarser(p.Timeframe)
		cbars, err := s.fetchBars(ctx, symbol, coarser, p.Limit)
		if err != nil {
			return symbolOutcome{idx: idx, skip: skipError, err: err}
		}
		cstate, err := s.scorer.Score(ctx, symbol, cbars)
		if err != nil {
			return symbolOutcome{idx: idx, skip: skipError, err: err}
		}
		if cstate.Direction() == "" || cstate.Direction() != direction {
			return symbolOutcome{idx: idx, skip: skipConsensus}
		}
		score += ConsensusBonus
	}

	cand := &models.ScanCandidate{
		Symbol:    symbol,
		Score:     score,
		Direction: direction,
		LastBar:   bars[len(bars)-1],
	}

	if p.EnforceDaily {
		dr, ok := daily[symbol]
		if !ok || !dr.Agrees(direction) {
			return symbolOutcome{idx: idx, skip: skipDaily}
		}
		cand.DailyRegime = &dr
	}

	if score < p.Threshold {
		return symbolOutcome{idx: idx, skip: skipThreshold}
	}
	return symbolOutcome{idx: idx, cand: cand}
}

// prefetchDaily fetches one daily series per symbol concurrently and
// scores it once, amortizing the regime check across the scan pass.
// Per-symbol failures leave the symbol out of the map, which the daily
// gate then treats as disagreement.
func (s *Scanner) prefetchDaily(ctx context.Context, symbols []string) (map[string]models.DailyRegime, error) {
	type dailyOutcome struct {
		symbol string
		regime models.DailyRegime
		err    error
	}
	outcomes := make([]dailyOutcome, len(symbols))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, sym := range symbols {
		wg.Add(1)
		go func(idx int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			regime, err := s.dailyRegime(ctx, symbol)
			outcomes[idx] = dailyOutcome{symbol: symbol, regime: regime, err: err}
		}(i, sym)
	}
	wg.Wait()

	out := make(map[string]models.DailyRegime, len(symbols))
	for _, o := range outcomes {
		if o.err != nil {
			if errors.Is(o.err, alpaca.ErrMissingCredentials) {
				return nil, o.err
			}
			continue
		}
		out[o.symbol] = o.regime
	}
	return out, nil
}

func (s *Scanner) dailyRegime(ctx context.Context, symbol string) (models.DailyRegime, error) {
	key := symbol
	if v, ok := s.cache.Get("daily", key, drepo.CacheTTL(drepo.TF1Day)); ok {
		return v.(models.DailyRegime), nil
	}
	bars, err := s.fetchBars(ctx, symbol, drepo.TF1Day, 400)
	if err != nil {
		return models.DailyRegime{}, err
	}
	if len(bars) == 0 {
		return models.DailyRegime{}, fmt.Errorf("no daily bars for %s", symbol)
	}
	state, err := s.scorer.Score(ctx, symbol, bars)
	if err != nil {
		return models.DailyRegime{}, err
	}
	regime := models.DailyRegime{Pivot: state.PivotRegime, Ichimoku: state.IchimokuRegime}
	s.cache.Set("daily", key, regime)
	return regime, nil
}

func (s *Scanner) fetchBars(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Bar, error) {
	key := symbol + "|" + string(tf) + "|" + strconv.Itoa(limit)
	if v, ok := s.cache.Get("bars", key, drepo.CacheTTL(tf)); ok {
		return v.([]models.Bar), nil
	}
	bars, err := s.bars.GetBars(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	s.cache.Set("bars", key, bars)
	return bars, nil
}
