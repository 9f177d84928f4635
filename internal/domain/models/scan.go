package models

// ScanCandidate is one accepted symbol in a scan pass.
type ScanCandidate struct {
	Symbol      string       `json:"symbol"`
	Score       float64      `json:"score"`
	Direction   string       `json:"direction"`
	LastBar     Bar          `json:"lastBar"`
	DailyRegime *DailyRegime `json:"dailyRegime,omitempty"`
}

// ScanCounts records why symbols were dropped and the pre-truncation
// accepted totals. AcceptedLongs+AcceptedShorts is independent of the
// `top` cap applied to the returned arrays.
type ScanCounts struct {
	NeutralSkipped    int `json:"neutralSkipped"`
	ConsensusBlocked  int `json:"consensusBlocked,omitempty"`
	DailyBlocked      int `json:"dailyBlocked,omitempty"`
	ThresholdRejected int `json:"thresholdRejected"`
	AcceptedLongs     int `json:"acceptedLongs"`
	AcceptedShorts    int `json:"acceptedShorts"`
}

// ScanResult is the immutable outcome of one scan pass. Longs and
// Shorts are sorted descending by score.
type ScanResult struct {
	Timeframe    string          `json:"timeframe"`
	Threshold    float64         `json:"threshold"`
	EnforceDaily bool            `json:"enforceDaily"`
	UniverseSize int             `json:"universeSize"`
	Longs        []ScanCandidate `json:"longs"`
	Shorts       []ScanCandidate `json:"shorts"`
	Counts       ScanCounts      `json:"counts"`
}
