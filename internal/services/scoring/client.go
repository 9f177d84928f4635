package scoring

import (
	"context"
	"fmt"

	"TradeScan/internal/domain/models"
	domsvc "TradeScan/internal/domain/service"
	"TradeScan/pkg/config"
)

// HTTPScorer calls the external scoring service. The service is a pure
// function of the bar prefix; nothing here inspects the indicator math.
type HTTPScorer struct{ base *ServiceBase }

func NewHTTPScorer(cfg *config.Config) *HTTPScorer { return &HTTPScorer{base: NewServiceBase(cfg)} }

type scoreRequest struct {
	Symbol string       `json:"symbol"`
	Bars   []models.Bar `json:"bars"`
}

type scoreResponse struct {
	Score          float64            `json:"score"`
	Components     map[string]float64 `json:"components"`
	PivotRegime    string             `json:"pivotRegime"`
	IchimokuRegime string             `json:"ichimokuRegime"`
	SatyDirection  string             `json:"satyDirection"`
	Squeeze        string             `json:"squeeze"`
}

func (s *HTTPScorer) Score(ctx context.Context, symbol string, bars []models.Bar) (models.ScoreState, error) {
	var sr scoreResponse
	if err := s.base.PostJSONWithRetry(ctx, "/score", scoreRequest{Symbol: symbol, Bars: bars}, &sr, 3); err != nil {
		return models.ScoreState{}, fmt.Errorf("post score: %w", err)
	}
	return models.ScoreState{
		Score:          sr.Score,
		Components:     sr.Components,
		PivotRegime:    sr.PivotRegime,
		IchimokuRegime: sr.IchimokuRegime,
		SatyDirection:  sr.SatyDirection,
		Squeeze:        sr.Squeeze,
	}, nil
}

var _ domsvc.Scorer = (*HTTPScorer)(nil)
