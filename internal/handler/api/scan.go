package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	models "TradeScan/internal/domain/models"
	domrepo "TradeScan/internal/domain/repository"
	"TradeScan/internal/service/cache"
	"TradeScan/internal/service/metrics"
	"TradeScan/internal/service/ratelimit"
	"TradeScan/internal/usecase"
	xhttp "TradeScan/pkg/http"
	xlogger "TradeScan/pkg/logger"

	"github.com/labstack/echo/v4"
)

// cachedEnvelope is the response-cache record: the serialized payload
// plus its content hash, so a conditional request can be answered
// without recomputing the scan.
type cachedEnvelope struct {
	ETag string `json:"etag"`
	Body []byte `json:"body"`
}

// ScanHandler serves the signal-scan endpoint.
type ScanHandler struct {
	logger    *xlogger.Logger
	scanner   *usecase.Scanner
	respCache cache.BytesCache
	limiter   *ratelimit.Limiter
	publisher publisher
}

type publisher interface {
	PublishCandidates(ctx context.Context, res *models.ScanResult) error
}

func NewScanHandler(logger *xlogger.Logger, scanner *usecase.Scanner, respCache cache.BytesCache, limiter *ratelimit.Limiter, pub publisher) *ScanHandler {
	return &ScanHandler{logger: logger, scanner: scanner, respCache: respCache, limiter: limiter, publisher: pub}
}

func (h *ScanHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/scan", h.Scan)
}

func (h *ScanHandler) Scan(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.ScanLatency.WithLabelValues("scan").Observe(time.Since(start).Seconds())
	}()

	if h.limiter != nil && !h.limiter.Allow("scan:"+c.RealIP(), 10, 2) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
	}

	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.Timeframe)

	params := usecase.ScanParams{
		Timeframe:        tf,
		Limit:            req.Limit,
		Top:              req.Top,
		Threshold:        req.Threshold,
		EnforceDaily:     req.EnforceDaily,
		ReturnAll:        req.ReturnAll,
		RequireConsensus: req.RequireConsensus,
		Symbols:          h.scanner.ResolveUniverse(SplitSymbols(req.Symbols)),
	}
	key := params.CacheKey()

	if env, ok := h.lookup(key); ok {
		metrics.CacheHits.WithLabelValues("scan", "hit").Inc()
		return replay(c, env)
	}
	metrics.CacheHits.WithLabelValues("scan", "miss").Inc()

	res, err := h.scanner.Scan(c.Request().Context(), params)
	if err != nil {
		metrics.ScanErrors.WithLabelValues("scan").Inc()
		h.logger.Error("scan usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if h.publisher != nil {
		if perr := h.publisher.PublishCandidates(c.Request().Context(), res); perr != nil {
			h.logger.Warn("candidate publish failed", xlogger.Error(perr))
		}
	}

	body, err := json.Marshal(xhttp.APIResponse{Status: http.StatusOK, Message: http.StatusText(http.StatusOK), Data: res})
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	env := cachedEnvelope{ETag: ETagFor(body), Body: body}
	h.store(key, env, domrepo.CacheTTL(tf))
	return replay(c, env)
}

// lookup fetches a cached envelope. Cache failures read as misses.
func (h *ScanHandler) lookup(key string) (cachedEnvelope, bool) {
	if h.respCache == nil {
		return cachedEnvelope{}, false
	}
	raw, ok, err := h.respCache.GetBytes(key)
	if err != nil || !ok {
		return cachedEnvelope{}, false
	}
	var env cachedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return cachedEnvelope{}, false
	}
	return env, true
}

func (h *ScanHandler) store(key string, env cachedEnvelope, ttl time.Duration) {
	if h.respCache == nil {
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := h.respCache.SetBytes(key, raw, ttl); err != nil && h.logger != nil {
		h.logger.Warn("response cache write failed", xlogger.Error(err))
	}
}

// replay writes the envelope, honoring If-None-Match: a matching tag
// gets 304 with no body.
func replay(c echo.Context, env cachedEnvelope) error {
	c.Response().Header().Set("ETag", env.ETag)
	if match := c.Request().Header.Get("If-None-Match"); match != "" && match == env.ETag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSONBlob(http.StatusOK, env.Body)
}

// ETagFor derives a strong validator from the payload bytes.
func ETagFor(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// SplitSymbols parses a comma-separated symbol list, uppercased, blanks
// dropped.
func SplitSymbols(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
