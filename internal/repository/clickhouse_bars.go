package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TradeScan/internal/domain/models"
	domrepo "TradeScan/internal/domain/repository"
	pkgch "TradeScan/pkg/clickhouse"
	applogger "TradeScan/pkg/logger"
)

// CHBarSource implements BarSource backed by a ClickHouse candles table.
// Used when backend.type is "clickhouse": scans and backtests then read
// locally ingested history instead of the upstream market-data API.
type CHBarSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHBarSource(ch *pkgch.Client, table string) *CHBarSource {
	if table == "" {
		table = "tradescan.candles"
	}
	return &CHBarSource{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHBarSource) SetLogger(l *applogger.Logger) { s.l = l }

// GetBars returns the latest n bars for (symbol, tf), ascending by
// time. The table stores one row per bar keyed by symbol and timeframe.
func (s *CHBarSource) GetBars(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) ([]models.Bar, error) {
	start := time.Now()
	limit = clampLimit(limit)
	const qtpl = `
        SELECT toUnixTimestamp(bucket), open, high, low, close, vol
        FROM %s
        WHERE symbol = ? AND tf = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_bars query error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Bar, 0, limit)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse get_bars scan error",
					applogger.String("table", s.table),
					applogger.String("symbol", symbol),
					applogger.String("tf", string(tf)),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		tmp = append(tmp, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Debug("clickhouse get_bars ok",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	return limit
}
