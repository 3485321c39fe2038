package executor

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/eternalabs/order-execution-engine/internal/domain"
	"github.com/google/uuid"
)

// MockConfig tunes the simulated venue
type MockConfig struct {
	SuccessRate float64 // probability of a successful attempt, 0..1
	MinLatency  time.Duration
	MaxLatency  time.Duration
}

var mockFailures = []error{
	errors.New("slippage exceeded tolerance"),
	errors.New("insufficient liquidity in pool"),
	errors.New("dex router rejected transaction"),
}

// MockRouter simulates a DEX router with configurable latency and failure
// rate. It honors context cancellation mid-attempt.
type MockRouter struct {
	cfg    MockConfig
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockRouter creates a simulated execution venue
func NewMockRouter(cfg *MockConfig, logger *slog.Logger) *MockRouter {
	c := *cfg
	if c.MinLatency <= 0 {
		c.MinLatency = 200 * time.Millisecond
	}
	if c.MaxLatency < c.MinLatency {
		c.MaxLatency = c.MinLatency
	}

	return &MockRouter{
		cfg:    c,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockRouter) Execute(ctx context.Context, order *domain.Order) (*domain.ExecutionResult, error) {
	latency := m.cfg.MinLatency
	if span := m.cfg.MaxLatency - m.cfg.MinLatency; span > 0 {
		latency += time.Duration(m.randInt64(int64(span)))
	}

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if m.randFloat64() >= m.cfg.SuccessRate {
		err := mockFailures[m.randInt64(int64(len(mockFailures)))]
		m.logger.Debug("Mock execution failed",
			slog.String("order_id", order.ID),
			slog.Any("error", err),
		)
		return nil, err
	}

	// Simulated fill: a touch of price impact on the way out
	result := &domain.ExecutionResult{
		TxHash:    "0x" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		AmountOut: order.AmountIn * (0.97 + 0.03*m.randFloat64()),
	}

	m.logger.Debug("Mock execution succeeded",
		slog.String("order_id", order.ID),
		slog.String("tx_hash", result.TxHash),
	)

	return result, nil
}

func (m *MockRouter) randFloat64() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64()
}

func (m *MockRouter) randInt64(n int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Int63n(n)
}
