package models

// Directional hint values used across ScoreState fields.
const (
	Bullish = "bullish"
	Bearish = "bearish"
	Neutral = "neutral"

	DirectionLong  = "long"
	DirectionShort = "short"
)

// ScoreState is the scoring engine's verdict for one bar-series prefix.
// It is never mutated; a fresh state is computed per evaluation point.
type ScoreState struct {
	Score          float64            `json:"score"`
	Components     map[string]float64 `json:"components,omitempty"`
	PivotRegime    string             `json:"pivotRegime"`
	IchimokuRegime string             `json:"ichimokuRegime"`
	SatyDirection  string             `json:"satyDirection"`
	Squeeze        string             `json:"squeeze,omitempty"`
}

// Direction derives a coarse long/short direction from the SATY hint.
// Returns "" when the hint is neutral or unknown.
func (s ScoreState) Direction() string {
	switch s.SatyDirection {
	case DirectionLong, Bullish:
		return DirectionLong
	case DirectionShort, Bearish:
		return DirectionShort
	}
	return ""
}

// DailyRegime is the daily-bar-derived pivot/Ichimoku pair used by the
// regime confirmation gate.
type DailyRegime struct {
	Pivot    string `json:"pivot"`
	Ichimoku string `json:"ichimoku"`
}

// Agrees reports whether both daily states match the candidate direction.
func (d DailyRegime) Agrees(direction string) bool {
	switch direction {
	case DirectionLong:
		return d.Pivot == Bullish && d.Ichimoku == Bullish
	case DirectionShort:
		return d.Pivot == Bearish && d.Ichimoku == Bearish
	}
	return false
}
