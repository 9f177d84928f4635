//go:build wireinject
// +build wireinject

package di

import (
	"TradeScan/pkg/config"
	"TradeScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
    wire.Build(
        ProvideLogger,

        // Caches and infrastructure clients
        ProvideTTLCache,
        ProvideResponseCache,
        ProvideClickHouseClient,
        ProvideKafkaProducer,

        // Repositories
        ProvideBarSource,
        ProvideSignalPublisher,
        ProvideScorer,
        ProvideBroker,
        ProvideStream,

        // Use cases
        ProvideScanner,
        ProvideBacktestEngine,
        ProvideOrderGate,

        // HTTP
        ProvideLimiter,
        ProvideRouter,

        // Application server
        ProvideApp,
    )
    return &server.App{}, nil
}
