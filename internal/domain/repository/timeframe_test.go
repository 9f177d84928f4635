package repository

import (
	"testing"
	"time"
)

func TestNormalizeTimeframe(t *testing.T) {
	cases := map[string]Timeframe{
		"":      TF1Min,
		"1Min":  TF1Min,
		"5m":    TF5Min,
		"15min": TF15Min,
		"1h":    TF1Hour,
		"hour":  TF1Hour,
		"d":     TF1Day,
		"daily": TF1Day,
		"junk":  TF1Min,
	}
	for in, want := range cases {
		if got := NormalizeTimeframe(in); got != want {
			t.Fatalf("NormalizeTimeframe(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNextCoarserChain(t *testing.T) {
	chain := []Timeframe{TF1Min, TF5Min, TF15Min, TF1Hour, TF1Day}
	for i := 0; i < len(chain)-1; i++ {
		if got := NextCoarser(chain[i]); got != chain[i+1] {
			t.Fatalf("NextCoarser(%s) = %s, want %s", chain[i], got, chain[i+1])
		}
	}
	// 1Day has no coarser bucket
	if got := NextCoarser(TF1Day); got != TF1Day {
		t.Fatalf("NextCoarser(1Day) = %s, want 1Day", got)
	}
}

func TestCacheTTLSteps(t *testing.T) {
	cases := map[Timeframe]time.Duration{
		TF1Min:  10 * time.Second,
		TF5Min:  30 * time.Second,
		TF15Min: 60 * time.Second,
		TF1Hour: 5 * time.Minute,
		TF1Day:  time.Hour,
	}
	for tf, want := range cases {
		if got := CacheTTL(tf); got != want {
			t.Fatalf("CacheTTL(%s) = %v, want %v", tf, got, want)
		}
	}
}

func TestLookbackStart(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := LookbackStart(TF15Min, now); got != now.AddDate(0, 0, -21) {
		t.Fatalf("intraday lookback = %v", got)
	}
	if got := LookbackStart(TF1Day, now); got != now.AddDate(-2, 0, 0) {
		t.Fatalf("daily lookback = %v", got)
	}
}
