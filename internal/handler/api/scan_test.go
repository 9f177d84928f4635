package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"TradeScan/internal/domain/models"
	drepo "TradeScan/internal/domain/repository"
	icache "TradeScan/internal/service/cache"
	"TradeScan/internal/usecase"
	xlogger "TradeScan/pkg/logger"

	"github.com/labstack/echo/v4"
)

type stubBars struct{ bars []models.Bar }

func (s *stubBars) GetBars(context.Context, string, drepo.Timeframe, int) ([]models.Bar, error) {
	return s.bars, nil
}

type stubScorer struct{ calls int }

func (s *stubScorer) Score(context.Context, string, []models.Bar) (models.ScoreState, error) {
	s.calls++
	return models.ScoreState{Score: 80, SatyDirection: models.DirectionLong,
		PivotRegime: models.Bullish, IchimokuRegime: models.Bullish}, nil
}

func newTestHandler(t *testing.T) (*ScanHandler, *stubScorer) {
	t.Helper()
	bars := make([]models.Bar, 50)
	for i := range bars {
		bars[i] = models.Bar{Time: int64(1000 + 60*i), Close: 100, Volume: 10}
	}
	scorer := &stubScorer{}
	ttl := icache.NewTTLCache()
	scanner := usecase.NewScanner(&stubBars{bars: bars}, scorer, ttl, []string{"AAPL"}, 2, nil)
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewScanHandler(l, scanner, icache.NewTTLBytes(ttl, "responses"), nil, nil), scorer
}

func doScan(t *testing.T, h *ScanHandler, etag string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/scan?timeframe=15Min&limit=50", nil)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Scan(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	return rec
}

func TestScanHandlerETag(t *testing.T) {
	h, scorer := newTestHandler(t)

	rec := doScan(t, h, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	var env struct {
		Data models.ScanResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(env.Data.Longs) != 1 || env.Data.Longs[0].Symbol != "AAPL" {
		t.Fatalf("result: %+v", env.Data)
	}
	firstCalls := scorer.calls

	// identical params replay from cache without recomputing
	rec = doScan(t, h, "")
	if rec.Code != http.StatusOK || rec.Header().Get("ETag") != etag {
		t.Fatalf("replay: status %d etag %q", rec.Code, rec.Header().Get("ETag"))
	}
	if scorer.calls != firstCalls {
		t.Fatalf("cached replay must not rescore (calls %d -> %d)", firstCalls, scorer.calls)
	}

	// a matching If-None-Match short-circuits to 304
	rec = doScan(t, h, etag)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("status %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("304 must carry no body")
	}
}

func TestScanHandlerValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/scan?limit=5", nil) // below the floor
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Scan(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("envelope status is transported in the body, got %d", rec.Code)
	}
	var env struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("body: %v", err)
	}
	if env.Status != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", env.Status)
	}
}

func TestETagForIsStable(t *testing.T) {
	a := ETagFor([]byte("same"))
	b := ETagFor([]byte("same"))
	if a != b || a == ETagFor([]byte("different")) {
		t.Fatalf("etag must be a pure content hash")
	}
}

func TestSplitSymbols(t *testing.T) {
	got := SplitSymbols(" aapl, msft ,,tsla ")
	want := []string{"AAPL", "MSFT", "TSLA"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
