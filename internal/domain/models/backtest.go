package models

// Regime buckets for backtest summaries.
const (
	RegimeAll  = "all"
	RegimeBull = "bull"
	RegimeBear = "bear"
)

// BacktestEvent is emitted when a historical bar's score crosses the
// configured threshold and a horizon-ahead bar exists.
type BacktestEvent struct {
	Symbol           string  `json:"symbol"`
	Time             string  `json:"time"`
	EntryPrice       float64 `json:"entryPrice"`
	Score            float64 `json:"score"`
	ForwardReturnPct float64 `json:"forwardReturnPct"`
}

// BacktestSummaryRow aggregates forward returns for one
// (symbol, regime, threshold) bucket.
type BacktestSummaryRow struct {
	Symbol          string  `json:"symbol"`
	Regime          string  `json:"regime"`
	Threshold       float64 `json:"threshold"`
	Events          int     `json:"events"`
	WinRatePct      float64 `json:"winRatePct"`
	AvgReturnPct    float64 `json:"avgReturnPct"`
	MedianReturnPct float64 `json:"medianReturnPct"`
}
