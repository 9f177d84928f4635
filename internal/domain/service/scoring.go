package service

import (
	"context"

	"TradeScan/internal/domain/models"
)

// Scorer computes the composite score and directional state for a
// bar-series prefix. Implementations must be pure: the same prefix
// always yields the same state. The indicator math itself lives in an
// external scoring service and is opaque to this engine.
type Scorer interface {
	Score(ctx context.Context, symbol string, bars []models.Bar) (models.ScoreState, error)
}
