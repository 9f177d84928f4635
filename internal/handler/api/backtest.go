package api

import (
	"net/http"
	"time"

	models "TradeScan/internal/domain/models"
	domrepo "TradeScan/internal/domain/repository"
	"TradeScan/internal/service/metrics"
	"TradeScan/internal/service/ratelimit"
	"TradeScan/internal/usecase"
	xhttp "TradeScan/pkg/http"
	xlogger "TradeScan/pkg/logger"

	"github.com/labstack/echo/v4"
)

// BacktestHandler serves the historical replay endpoints.
type BacktestHandler struct {
	logger  *xlogger.Logger
	engine  *usecase.BacktestEngine
	scanner *usecase.Scanner
	limiter *ratelimit.Limiter
}

func NewBacktestHandler(logger *xlogger.Logger, engine *usecase.BacktestEngine, scanner *usecase.Scanner, limiter *ratelimit.Limiter) *BacktestHandler {
	return &BacktestHandler{logger: logger, engine: engine, scanner: scanner, limiter: limiter}
}

func (h *BacktestHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/backtest")
	g.GET("/batch", h.Batch)
	g.GET("/extended", h.Extended)
}

// Batch replays the universe and streams the flat event CSV.
func (h *BacktestHandler) Batch(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.ScanLatency.WithLabelValues("backtest_batch").Observe(time.Since(start).Seconds())
	}()

	if h.limiter != nil && !h.limiter.Allow("backtest:"+c.RealIP(), 4, 0.5) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
	}

	req := &models.BatchBacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	events, err := h.engine.Events(c.Request().Context(), usecase.BacktestParams{
		Symbols:   h.scanner.ResolveUniverse(SplitSymbols(req.Symbols)),
		Timeframe: domrepo.NormalizeTimeframe(req.Timeframe),
		Limit:     req.Limit,
		Threshold: req.Threshold,
		Horizon:   req.Horizon,
	})
	if err != nil {
		metrics.ScanErrors.WithLabelValues("backtest_batch").Inc()
		h.logger.Error("batch backtest error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return c.Blob(http.StatusOK, "text/csv", []byte(usecase.EventsCSV(events)))
}

// Extended replays with the daily-regime filter and the per-regime
// summary grid, in the caller's chosen representation.
func (h *BacktestHandler) Extended(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.ScanLatency.WithLabelValues("backtest_extended").Observe(time.Since(start).Seconds())
	}()

	if h.limiter != nil && !h.limiter.Allow("backtest:"+c.RealIP(), 4, 0.5) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
	}

	req := &models.ExtendedBacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	params := usecase.BacktestParams{
		Symbols:        h.scanner.ResolveUniverse(SplitSymbols(req.Symbols)),
		Timeframe:      domrepo.NormalizeTimeframe(req.Timeframe),
		Limit:          req.Limit,
		Threshold:      req.Threshold,
		Horizon:        req.Horizon,
		DailyFilter:    req.DailyFilter,
		IncludeRegimes: req.IncludeRegimes,
	}
	ctx := c.Request().Context()

	switch req.Format {
	case "summary", "summary-json":
		rows, err := h.engine.Summary(ctx, params)
		if err != nil {
			metrics.ScanErrors.WithLabelValues("backtest_extended").Inc()
			h.logger.Error("extended backtest error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		if req.Format == "summary" {
			return c.Blob(http.StatusOK, "text/csv", []byte(usecase.SummaryCSV(rows)))
		}
		return xhttp.SuccessResponse(c, rows)
	default:
		events, err := h.engine.Events(ctx, params)
		if err != nil {
			metrics.ScanErrors.WithLabelValues("backtest_extended").Inc()
			h.logger.Error("extended backtest error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		if req.Format == "csv" {
			return c.Blob(http.StatusOK, "text/csv", []byte(usecase.EventsCSV(events)))
		}
		return xhttp.SuccessResponse(c, events)
	}
}
