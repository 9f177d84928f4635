package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"TradeScan/internal/domain/models"
	drepo "TradeScan/internal/domain/repository"
	icache "TradeScan/internal/service/cache"
	"TradeScan/internal/service/alpaca"
)

type fakeBars struct {
	series map[string][]models.Bar // keyed symbol|tf
	errs   map[string]error
}

func (f *fakeBars) GetBars(_ context.Context, symbol string, tf drepo.Timeframe, _ int) ([]models.Bar, error) {
	key := symbol + "|" + string(tf)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.series[key], nil
}

type fakeScorer struct {
	fn func(symbol string, bars []models.Bar) (models.ScoreState, error)
}

func (f *fakeScorer) Score(_ context.Context, symbol string, bars []models.Bar) (models.ScoreState, error) {
	return f.fn(symbol, bars)
}

// makeBars builds n ascending bars with a constant close; the first
// bar's Open carries a marker so fake scorers can tell series apart.
func makeBars(n int, close, marker float64) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		out[i] = models.Bar{Time: int64(1000 + 60*i), Open: marker, High: close, Low: close, Close: close, Volume: 100}
	}
	return out
}

func longState(score float64) models.ScoreState {
	return models.ScoreState{Score: score, SatyDirection: models.DirectionLong,
		PivotRegime: models.Bullish, IchimokuRegime: models.Bullish}
}

func shortState(score float64) models.ScoreState {
	return models.ScoreState{Score: score, SatyDirection: models.DirectionShort,
		PivotRegime: models.Bearish, IchimokuRegime: models.Bearish}
}

func newTestScanner(bars *fakeBars, scorer *fakeScorer) *Scanner {
	return NewScanner(bars, scorer, icache.NewTTLCache(), nil, 4, nil)
}

func TestScanRankingAndTieStability(t *testing.T) {
	bars := &fakeBars{series: map[string][]models.Bar{
		"A|15Min": makeBars(50, 10, 0),
		"B|15Min": makeBars(50, 10, 0),
		"C|15Min": makeBars(50, 10, 0),
	}}
	scores := map[string]float64{"A": 80, "B": 90, "C": 80}
	scorer := &fakeScorer{fn: func(symbol string, _ []models.Bar) (models.ScoreState, error) {
		return longState(scores[symbol]), nil
	}}
	s := newTestScanner(bars, scorer)

	res, err := s.Scan(context.Background(), ScanParams{
		Timeframe: drepo.TF15Min, Limit: 50, Top: 5, Threshold: 60,
		Symbols: []string{"A", "B", "C"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Longs) != 3 {
		t.Fatalf("got %d longs, want 3", len(res.Longs))
	}
	want := []string{"B", "A", "C"} // ties keep universe order
	for i, sym := range want {
		if res.Longs[i].Symbol != sym {
			t.Fatalf("rank %d is %s, want %s", i, res.Longs[i].Symbol, sym)
		}
	}
	if res.Counts.AcceptedLongs != 3 || res.Counts.AcceptedShorts != 0 {
		t.Fatalf("counts: %+v", res.Counts)
	}
}

func TestScanThresholdAndNeutralCounts(t *testing.T) {
	bars := &fakeBars{series: map[string][]models.Bar{
		"A|15Min": makeBars(50, 10, 0),
		"B|15Min": makeBars(50, 10, 0),
		"C|15Min": makeBars(50, 10, 0),
	}}
	scorer := &fakeScorer{fn: func(symbol string, _ []models.Bar) (models.ScoreState, error) {
		switch symbol {
		case "A":
			return longState(70), nil
		case "B":
			return longState(40), nil // below threshold
		default:
			return models.ScoreState{Score: 95, SatyDirection: models.Neutral}, nil
		}
	}}
	s := newTestScanner(bars, scorer)

	res, err := s.Scan(context.Background(), ScanParams{
		Timeframe: drepo.TF15Min, Limit: 50, Top: 5, Threshold: 60,
		Symbols: []string{"A", "B", "C"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Counts.ThresholdRejected != 1 || res.Counts.NeutralSkipped != 1 || res.Counts.AcceptedLongs != 1 {
		t.Fatalf("counts: %+v", res.Counts)
	}
}

func TestScanThresholdMonotonic(t *testing.T) {
	series := map[string][]models.Bar{}
	for _, sym := range []string{"A", "B", "C", "D"} {
		series[sym+"|15Min"] = makeBars(50, 10, 0)
	}
	scorer := &fakeScorer{fn: func(symbol string, _ []models.Bar) (models.ScoreState, error) {
		switch symbol {
		case "A":
			return longState(55), nil
		case "B":
			return longState(65), nil
		case "C":
			return longState(75), nil
		default:
			return shortState(85), nil
		}
	}}
	s := newTestScanner(&fakeBars{series: series}, scorer)

	accepted := func(threshold float64) int {
		res, err := s.Scan(context.Background(), ScanParams{
			Timeframe: drepo.TF15Min, Limit: 50, Top: 10, Threshold: threshold,
			Symbols: []string{"A", "B", "C", "D"},
		})
		if err != nil {
			t.Fatalf("scan at %v: %v", threshold, err)
		}
		return res.Counts.AcceptedLongs + res.Counts.AcceptedShorts
	}

	lo, hi := accepted(50), accepted(70)
	if lo != 4 || hi != 2 {
		t.Fatalf("accepted at 50 = %d, at 70 = %d", lo, hi)
	}
	if hi > lo {
		t.Fatalf("raising the threshold must not accept more candidates")
	}
}

func TestScanConsensusBonusAndBlock(t *testing.T) {
	bars := &fakeBars{series: map[string][]models.Bar{
		"A|15Min": makeBars(50, 10, 1),
		"A|1Hour": makeBars(50, 10, 2),
		"B|15Min": makeBars(50, 10, 1),
		"B|1Hour": makeBars(50, 10, 2),
	}}
	scorer := &fakeScorer{fn: func(symbol string, bars []models.Bar) (models.ScoreState, error) {
		coarser := bars[0].Open == 2
		switch symbol {
		case "A":
			return longState(65), nil // both timeframes long
		default:
			if coarser {
				return shortState(80), nil // disagreement
			}
			return longState(65), nil
		}
	}}
	s := newTestScanner(bars, scorer)

	res, err := s.Scan(context.Background(), ScanParams{
		Timeframe: drepo.TF15Min, Limit: 50, Top: 5, Threshold: 60,
		RequireConsensus: true,
		Symbols:          []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Longs) != 1 || res.Longs[0].Symbol != "A" {
		t.Fatalf("longs: %+v", res.Longs)
	}
	if res.Longs[0].Score != 65+ConsensusBonus {
		t.Fatalf("score %v, want %v", res.Longs[0].Score, 65+ConsensusBonus)
	}
	if res.Counts.ConsensusBlocked != 1 {
		t.Fatalf("counts: %+v", res.Counts)
	}
}

func TestScanConsensusCanLiftOverThreshold(t *testing.T) {
	bars := &fakeBars{series: map[string][]models.Bar{
		"A|15Min": makeBars(50, 10, 1),
		"A|1Hour": makeBars(50, 10, 2),
	}}
	scorer := &fakeScorer{fn: func(_ string, _ []models.Bar) (models.ScoreState, error) {
		return longState(55), nil // below 60 until the bonus lands
	}}
	s := newTestScanner(bars, scorer)

	res, err := s.Scan(context.Background(), ScanParams{
		Timeframe: drepo.TF15Min, Limit: 50, Top: 5, Threshold: 60,
		RequireConsensus: true,
		Symbols:          []string{"A"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Longs) != 1 || res.Longs[0].Score != 65 {
		t.Fatalf("bonus must apply before the threshold check: %+v", res.Longs)
	}
}

func TestScanDailyRegimeGate(t *testing.T) {
	bars := &fakeBars{series: map[string][]models.Bar{
		"A|15Min": makeBars(50, 10, 1),
		"A|1Day":  makeBars(50, 10, 3),
		"B|15Min": makeBars(50, 10, 1),
		"B|1Day":  makeBars(50, 10, 3),
	}}
	scorer := &fakeScorer{fn: func(symbol string, bars []models.Bar) (models.ScoreState, error) {
		daily := bars[0].Open == 3
		if symbol == "B" && daily {
			return shortState(80), nil // daily disagrees with the long
		}
		return longState(75), nil
	}}
	s := newTestScanner(bars, scorer)

	res, err := s.Scan(context.Background(), ScanParams{
		Timeframe: drepo.TF15Min, Limit: 50, Top: 5, Threshold: 60,
		EnforceDaily: true,
		Symbols:      []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Longs) != 1 || res.Longs[0].Symbol != "A" {
		t.Fatalf("longs: %+v", res.Longs)
	}
	if res.Longs[0].DailyRegime == nil || res.Longs[0].DailyRegime.Pivot != models.Bullish {
		t.Fatalf("accepted candidate should carry its daily regime: %+v", res.Longs[0])
	}
	if res.Counts.DailyBlocked != 1 {
		t.Fatalf("counts: %+v", res.Counts)
	}
}

func TestScanTopTruncationKeepsCounts(t *testing.T) {
	series := map[string][]models.Bar{}
	symbols := []string{"A", "B", "C", "D"}
	for _, sym := range symbols {
		series[sym+"|15Min"] = makeBars(50, 10, 0)
	}
	scorer := &fakeScorer{fn: func(_ string, _ []models.Bar) (models.ScoreState, error) {
		return longState(80), nil
	}}
	s := newTestScanner(&fakeBars{series: series}, scorer)

	res, err := s.Scan(context.Background(), ScanParams{
		Timeframe: drepo.TF15Min, Limit: 50, Top: 2, Threshold: 60,
		Symbols: symbols,
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Longs) != 2 {
		t.Fatalf("got %d longs, want top=2", len(res.Longs))
	}
	if res.Counts.AcceptedLongs != 4 {
		t.Fatalf("counts must reflect pre-truncation totals: %+v", res.Counts)
	}

	res, err = s.Scan(context.Background(), ScanParams{
		Timeframe: drepo.TF15Min, Limit: 50, Top: 2, Threshold: 60,
		ReturnAll: true,
		Symbols:   symbols,
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Longs) != 4 {
		t.Fatalf("returnAll must skip truncation, got %d", len(res.Longs))
	}
}

func TestScanSwallowsPerSymbolErrors(t *testing.T) {
	bars := &fakeBars{
		series: map[string][]models.Bar{"A|15Min": makeBars(50, 10, 0)},
		errs:   map[string]error{"B|15Min": fmt.Errorf("upstream 500")},
	}
	scorer := &fakeScorer{fn: func(_ string, _ []models.Bar) (models.ScoreState, error) {
		return longState(80), nil
	}}
	s := newTestScanner(bars, scorer)

	res, err := s.Scan(context.Background(), ScanParams{
		Timeframe: drepo.TF15Min, Limit: 50, Top: 5, Threshold: 60,
		Symbols: []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("one bad symbol must not fail the pass: %v", err)
	}
	if len(res.Longs) != 1 || res.Longs[0].Symbol != "A" {
		t.Fatalf("longs: %+v", res.Longs)
	}
}

func TestScanMissingCredentialsFailsRequest(t *testing.T) {
	bars := &fakeBars{errs: map[string]error{"A|15Min": alpaca.ErrMissingCredentials}}
	scorer := &fakeScorer{fn: func(_ string, _ []models.Bar) (models.ScoreState, error) {
		return longState(80), nil
	}}
	s := newTestScanner(bars, scorer)

	_, err := s.Scan(context.Background(), ScanParams{
		Timeframe: drepo.TF15Min, Limit: 50, Top: 5, Threshold: 60,
		Symbols: []string{"A"},
	})
	if !errors.Is(err, alpaca.ErrMissingCredentials) {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestResolveUniverse(t *testing.T) {
	s := NewScanner(nil, nil, icache.NewTTLCache(), []string{"SPY"}, 1, nil)

	if got := s.ResolveUniverse([]string{"AAPL"}); len(got) != 1 || got[0] != "AAPL" {
		t.Fatalf("explicit symbols must win: %v", got)
	}

	t.Setenv("SCAN_SYMBOLS", "msft, tsla")
	if got := s.ResolveUniverse(nil); len(got) != 2 || got[0] != "MSFT" || got[1] != "TSLA" {
		t.Fatalf("env universe: %v", got)
	}

	t.Setenv("SCAN_SYMBOLS", "")
	if got := s.ResolveUniverse(nil); len(got) != 1 || got[0] != "SPY" {
		t.Fatalf("config fallback: %v", got)
	}
}

func TestCacheKeyDeterministic(t *testing.T) {
	p := ScanParams{Timeframe: drepo.TF15Min, Limit: 200, Top: 5, Threshold: 60,
		Symbols: []string{"A", "B"}}
	if p.CacheKey() != p.CacheKey() {
		t.Fatalf("cache key must be stable")
	}
	q := p
	q.Threshold = 70
	if p.CacheKey() == q.CacheKey() {
		t.Fatalf("distinct params must yield distinct keys")
	}
}
