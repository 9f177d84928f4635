package api

import (
	"github.com/labstack/echo/v4"
)

// Router aggregates the endpoint handlers behind a single route
// registrar for the HTTP server.
type Router struct {
	scan     *ScanHandler
	backtest *BacktestHandler
	orders   *OrdersHandler
}

func NewRouter(scan *ScanHandler, backtest *BacktestHandler, orders *OrdersHandler) *Router {
	return &Router{scan: scan, backtest: backtest, orders: orders}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	r.scan.RegisterRoutes(e)
	r.backtest.RegisterRoutes(e)
	r.orders.RegisterRoutes(e)
}
