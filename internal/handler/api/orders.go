package api

import (
	"io"
	"net/http"
	"time"

	"TradeScan/internal/service/metrics"
	"TradeScan/internal/usecase"
	xhttp "TradeScan/pkg/http"
	xlogger "TradeScan/pkg/logger"

	"github.com/labstack/echo/v4"
)

// OrdersHandler serves the gated order-submission endpoint.
type OrdersHandler struct {
	logger *xlogger.Logger
	gate   *usecase.OrderGate
}

func NewOrdersHandler(logger *xlogger.Logger, gate *usecase.OrderGate) *OrdersHandler {
	return &OrdersHandler{logger: logger, gate: gate}
}

func (h *OrdersHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/orders", h.Submit)
}

// Submit evaluates the guardrail chain over the posted order. A pass
// replays the brokerage reply verbatim, status code and body included.
// A rejection is a 422 naming the rule and the computed value.
func (h *OrdersHandler) Submit(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.ScanLatency.WithLabelValues("orders").Observe(time.Since(start).Seconds())
	}()

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if len(raw) == 0 {
		return xhttp.BadRequestResponse(c, "empty order body")
	}

	decision, err := h.gate.Submit(c.Request().Context(), raw)
	if err != nil {
		metrics.ScanErrors.WithLabelValues("orders").Inc()
		h.logger.Error("order gate error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if !decision.Allowed {
		metrics.OrderDecisions.WithLabelValues(decision.Rule).Inc()
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"allowed": false,
			"rule":    decision.Rule,
			"reason":  decision.Reason,
		})
	}

	metrics.OrderDecisions.WithLabelValues("allowed").Inc()
	contentType := decision.Upstream.ContentType
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Blob(decision.Upstream.StatusCode, contentType, decision.Upstream.Body)
}
