package models

// Requests for the scan/backtest HTTP endpoints. Defined in domain for
// consistency and reuse. Timeframe strings are normalized downstream,
// so they are deliberately not constrained here.

type ScanRequest struct {
	Timeframe        string  `query:"timeframe" json:"timeframe" default:"15Min"`
	Limit            int     `query:"limit" json:"limit" default:"200" validate:"gte=10,lte=1000"`
	Top              int     `query:"top" json:"top" default:"5" validate:"gte=1,lte=50"`
	Threshold        float64 `query:"threshold" json:"threshold" default:"60" validate:"gte=0,lte=100"`
	EnforceDaily     bool    `query:"enforceDaily" json:"enforceDaily"`
	ReturnAll        bool    `query:"returnAll" json:"returnAll"`
	RequireConsensus bool    `query:"requireConsensus" json:"requireConsensus"`
	Symbols          string  `query:"symbols" json:"symbols"`
}

type BatchBacktestRequest struct {
	Symbols   string  `query:"symbols" json:"symbols"`
	Timeframe string  `query:"timeframe" json:"timeframe" default:"15Min"`
	Limit     int     `query:"limit" json:"limit" default:"500" validate:"gte=100,lte=2000"`
	Threshold float64 `query:"threshold" json:"threshold" default:"60" validate:"gte=0,lte=100"`
	Horizon   int     `query:"horizon" json:"horizon" default:"10" validate:"gte=1,lte=100"`
}

type ExtendedBacktestRequest struct {
	Symbols        string  `query:"symbols" json:"symbols"`
	Timeframe      string  `query:"timeframe" json:"timeframe" default:"15Min"`
	Limit          int     `query:"limit" json:"limit" default:"500" validate:"gte=100,lte=2000"`
	Threshold      float64 `query:"threshold" json:"threshold" default:"60" validate:"gte=0,lte=100"`
	Horizon        int     `query:"horizon" json:"horizon" default:"10" validate:"gte=1,lte=100"`
	DailyFilter    string  `query:"dailyFilter" json:"dailyFilter" validate:"omitempty,oneof=bull bear"`
	Format         string  `query:"format" json:"format" default:"json" validate:"oneof=csv json summary summary-json"`
	IncludeRegimes bool    `query:"includeRegimes" json:"includeRegimes"`
}
