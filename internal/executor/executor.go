package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eternalabs/order-execution-engine/internal/config"
	"github.com/eternalabs/order-execution-engine/internal/domain"
)

// Executor is the abstract execution venue. A single attempt either returns
// a result or an error; retry and timeout policy belong to the worker, not
// the venue.
type Executor interface {
	Execute(ctx context.Context, order *domain.Order) (*domain.ExecutionResult, error)
}

// New builds the execution backend selected by configuration
func New(cfg *config.ExecutorConfig, logger *slog.Logger) (Executor, error) {
	switch cfg.Backend {
	case config.ExecutorBackendMock, "":
		return NewMockRouter(&MockConfig{
			SuccessRate: cfg.SuccessRate,
			MinLatency:  cfg.MinLatency,
			MaxLatency:  cfg.MaxLatency,
		}, logger), nil
	case config.ExecutorBackendDex:
		return NewDexRouter(&DexConfig{
			Endpoint:       cfg.Endpoint,
			RequestTimeout: cfg.RequestTimeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown executor backend: %q", cfg.Backend)
	}
}
