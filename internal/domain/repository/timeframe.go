package repository

import (
	"strings"
	"time"
)

// Timeframe represents bar resolution buckets in the upstream
// market-data provider's vocabulary.
type Timeframe string

const (
	TF1Min  Timeframe = "1Min"
	TF5Min  Timeframe = "5Min"
	TF15Min Timeframe = "15Min"
	TF1Hour Timeframe = "1Hour"
	TF1Day  Timeframe = "1Day"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1Min, TF5Min, TF15Min, TF1Hour, TF1Day:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the finest supported granularity, the safe
// fallback for unmapped inputs.
func DefaultTimeframe() Timeframe { return TF1Min }

// NormalizeTimeframe converts raw user input to a valid timeframe.
// Accepts common short forms (1m, 5m, 15m, 1h, 1d, d, day, hour).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	if tf := Timeframe(s); IsValidTimeframe(tf) {
		return tf
	}
	switch strings.ToLower(s) {
	case "1m", "1min", "min", "minute":
		return TF1Min
	case "5m", "5min":
		return TF5Min
	case "15m", "15min":
		return TF15Min
	case "1h", "1hour", "h", "hour", "60min":
		return TF1Hour
	case "1d", "1day", "d", "day", "daily":
		return TF1Day
	}
	return DefaultTimeframe()
}

// NextCoarser returns the next-coarser timeframe used by the consensus
// check. 1Day has no coarser bucket and maps to itself.
func NextCoarser(tf Timeframe) Timeframe {
	switch tf {
	case TF1Min:
		return TF5Min
	case TF5Min:
		return TF15Min
	case TF15Min:
		return TF1Hour
	case TF1Hour:
		return TF1Day
	default:
		return TF1Day
	}
}

// CacheTTL is a step function of granularity: coarser timeframes get
// longer TTLs since their bars change less often.
func CacheTTL(tf Timeframe) time.Duration {
	switch tf {
	case TF1Min:
		return 10 * time.Second
	case TF5Min:
		return 30 * time.Second
	case TF15Min:
		return 60 * time.Second
	case TF1Hour:
		return 5 * time.Minute
	case TF1Day:
		return time.Hour
	default:
		return 10 * time.Second
	}
}

// LookbackStart bounds the history window fetched for a timeframe:
// about 21 days for intraday granularities, about 2 years for daily.
func LookbackStart(tf Timeframe, now time.Time) time.Time {
	if tf == TF1Day {
		return now.AddDate(-2, 0, 0)
	}
	return now.AddDate(0, 0, -21)
}
