package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServerWiresRequestMetrics(t *testing.T) {
	s := NewServer(nil)

	// the counter is recorded after the response is written, so the
	// first scrape seeds it and the second scrape can see it
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("scrape %d: status %d", i, rec.Code)
		}
		if i == 1 && !strings.Contains(rec.Body.String(), `http_requests_total{method="GET",path="/metrics",status="200"}`) {
			t.Fatalf("request counter missing from scrape")
		}
	}
}
