package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	mw := Metrics(nil, time.Second)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("nope"))
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/scan", http.MethodGet, "418"))

	req := httptest.NewRequest(http.MethodGet, "/api/scan", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status %d", rec.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/scan", http.MethodGet, "418"))
	if after != before+1 {
		t.Fatalf("requests counter %v -> %v", before, after)
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{150: "1xx", 200: "2xx", 304: "3xx", 404: "4xx", 500: "5xx"}
	for code, want := range cases {
		if got := statusClass(code); got != want {
			t.Fatalf("statusClass(%d) = %s, want %s", code, got, want)
		}
	}
}
