package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    ScanLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "tradescan",
            Subsystem: "scan",
            Name:      "latency_seconds",
            Help:      "Latency of scan and backtest endpoints",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"endpoint"},
    )

    ScanErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "tradescan",
            Subsystem: "scan",
            Name:      "errors_total",
            Help:      "Errors by endpoint",
        },
        []string{"endpoint"},
    )

    CacheHits = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "tradescan",
            Subsystem: "scan",
            Name:      "cache_hits_total",
            Help:      "Response cache hits and misses",
        },
        []string{"endpoint", "result"},
    )

    OrderDecisions = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "tradescan",
            Subsystem: "orders",
            Name:      "decisions_total",
            Help:      "Order gate decisions by outcome rule",
        },
        []string{"rule"},
    )
)

func Register() {
    once.Do(func() {
        prometheus.MustRegister(ScanLatency, ScanErrors, CacheHits, OrderDecisions)
    })
}
