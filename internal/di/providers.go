package di

import (
    "context"
    "fmt"
    "time"

    domrepo "TradeScan/internal/domain/repository"
    domsvc "TradeScan/internal/domain/service"
    "TradeScan/internal/handler/api"
    internalrepo "TradeScan/internal/repository"
    "TradeScan/internal/service/alpaca"
    icache "TradeScan/internal/service/cache"
    "TradeScan/internal/service/guard"
    "TradeScan/internal/service/ratelimit"
    "TradeScan/internal/service/stream"
    "TradeScan/internal/services/scoring"
    "TradeScan/internal/usecase"
    pkgch "TradeScan/pkg/clickhouse"
    "TradeScan/pkg/config"
    pkgkafka "TradeScan/pkg/kafka"
    applogger "TradeScan/pkg/logger"
    "TradeScan/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	l, err := applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideTTLCache creates the in-process keyed store shared by the
// scanner, the backtest engine and (optionally) the response cache.
func ProvideTTLCache() *icache.TTLCache {
	return icache.NewTTLCache()
}

// ProvideResponseCache picks the response-cache backend: Redis when
// enabled (shared across replicas), otherwise a named map of the
// in-process store.
func ProvideResponseCache(cfg *config.Config, ttl *icache.TTLCache) icache.BytesCache {
	if cfg.Cache.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return icache.NewTTLBytes(ttl, "responses")
}

// ProvideClickHouseClient creates a ClickHouse client when the bar
// backend is ClickHouse; nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS tradescan",
		"CREATE TABLE IF NOT EXISTS tradescan.candles (symbol String, tf String, bucket DateTime, open Float64, high Float64, low Float64, close Float64, vol Int64) ENGINE=MergeTree ORDER BY (symbol, tf, bucket)",
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideBarSource picks the bar backend per configuration.
func ProvideBarSource(cfg *config.Config, chClient *pkgch.Client, l *applogger.Logger) (domrepo.BarSource, error) {
	if cfg.Backend.Type == "clickhouse" {
		if chClient == nil {
			return nil, fmt.Errorf("clickhouse backend selected but client is nil")
		}
		src := internalrepo.NewCHBarSource(chClient, cfg.ClickHouse.Table)
		src.SetLogger(l)
		return src, nil
	}
	return alpaca.NewMarketData(cfg), nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers
// are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher creates the Kafka-backed publisher, or a noop
// when Kafka is absent.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) domrepo.SignalPublisher {
	if producer == nil {
		return internalrepo.NoopSignalPublisher{}
	}
	pub := internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic, cfg.Kafka.AuditTopic)
	pub.SetLogger(l)
	return pub
}

// ProvideScorer creates the scoring-service client.
func ProvideScorer(cfg *config.Config) domsvc.Scorer {
	return scoring.NewHTTPScorer(cfg)
}

// ProvideBroker creates the brokerage client.
func ProvideBroker(cfg *config.Config) domrepo.Broker {
	return alpaca.NewBroker(cfg)
}

// ProvideStream creates the live trade-tape client when enabled.
func ProvideStream(cfg *config.Config, l *applogger.Logger) *stream.Client {
	if !cfg.Stream.Enabled {
		return nil
	}
	return stream.New(cfg, l)
}

// ProvideScanner creates the scan use case.
func ProvideScanner(bars domrepo.BarSource, scorer domsvc.Scorer, ttl *icache.TTLCache, cfg *config.Config, l *applogger.Logger) *usecase.Scanner {
	return usecase.NewScanner(bars, scorer, ttl, cfg.Scan.Symbols, cfg.Scan.Workers, l)
}

// ProvideBacktestEngine creates the replay use case.
func ProvideBacktestEngine(bars domrepo.BarSource, scorer domsvc.Scorer, ttl *icache.TTLCache, l *applogger.Logger) *usecase.BacktestEngine {
	return usecase.NewBacktestEngine(bars, scorer, ttl, l)
}

// ProvideOrderGate creates the guarded order-submission use case.
func ProvideOrderGate(cfg *config.Config, broker domrepo.Broker, sc *stream.Client, publisher domrepo.SignalPublisher, l *applogger.Logger) *usecase.OrderGate {
	var tape guard.PriceTape
	if sc != nil {
		tape = sc
	}
	return usecase.NewOrderGate(cfg, broker, tape, publisher, l)
}

// ProvideLimiter creates the per-client token-bucket limiter.
func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideRouter assembles the HTTP handlers.
func ProvideRouter(
	l *applogger.Logger,
	scanner *usecase.Scanner,
	engine *usecase.BacktestEngine,
	gate *usecase.OrderGate,
	respCache icache.BytesCache,
	limiter *ratelimit.Limiter,
	publisher domrepo.SignalPublisher,
) *api.Router {
	scan := api.NewScanHandler(l, scanner, respCache, limiter, publisher)
	backtest := api.NewBacktestHandler(l, engine, scanner, limiter)
	orders := api.NewOrdersHandler(l, gate)
	return api.NewRouter(scan, backtest, orders)
}

// kafkaLogPublisher adapts the Kafka producer to the log collector's
// publisher interface.
type kafkaLogPublisher struct{ p *pkgkafka.Producer }

func (k kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return k.p.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
    cfg *config.Config,
    router *api.Router,
    sc *stream.Client,
    chClient *pkgch.Client,
    producer *pkgkafka.Producer,
    l *applogger.Logger,
) *server.App {
    if producer != nil && cfg.Kafka.LogTopic != "" {
        l.AddCollector(&applogger.CollectionConfig{
            TimeInterval:   30 * time.Second,
            CountThreshold: 100,
            Topic:          cfg.Kafka.LogTopic,
            Publisher:      kafkaLogPublisher{p: producer},
        })
    }
    return server.New(cfg, router, sc, chClient, producer, l)
}
