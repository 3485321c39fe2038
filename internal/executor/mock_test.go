package executor

import (
	"context"
	"testing"
	"time"

	"github.com/eternalabs/order-execution-engine/internal/config"
	"github.com/eternalabs/order-execution-engine/internal/domain"
	"github.com/eternalabs/order-execution-engine/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() *domain.Order {
	return &domain.Order{
		ID:       "order-1",
		UserID:   "user-1",
		Type:     domain.OrderTypeMarket,
		TokenIn:  "USDC",
		TokenOut: "SOL",
		AmountIn: 5,
	}
}

func TestMockRouter_AlwaysSucceeds(t *testing.T) {
	router := NewMockRouter(&MockConfig{
		SuccessRate: 1,
		MinLatency:  time.Millisecond,
		MaxLatency:  2 * time.Millisecond,
	}, logger.NewDefault().Logger)

	for i := 0; i < 10; i++ {
		result, err := router.Execute(context.Background(), testOrder())
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.NotEmpty(t, result.TxHash)
		assert.Greater(t, result.AmountOut, 0.0)
		assert.LessOrEqual(t, result.AmountOut, 5.0)
	}
}

func TestMockRouter_AlwaysFails(t *testing.T) {
	router := NewMockRouter(&MockConfig{
		SuccessRate: 0,
		MinLatency:  time.Millisecond,
		MaxLatency:  2 * time.Millisecond,
	}, logger.NewDefault().Logger)

	for i := 0; i < 10; i++ {
		result, err := router.Execute(context.Background(), testOrder())
		require.Error(t, err)
		assert.Nil(t, result)
		assert.NotEmpty(t, err.Error())
	}
}

func TestMockRouter_HonorsContextCancellation(t *testing.T) {
	router := NewMockRouter(&MockConfig{
		SuccessRate: 1,
		MinLatency:  5 * time.Second,
		MaxLatency:  5 * time.Second,
	}, logger.NewDefault().Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := router.Execute(ctx, testOrder())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNew_SelectsBackendFromConfig(t *testing.T) {
	log := logger.NewDefault().Logger

	mock, err := New(&config.ExecutorConfig{Backend: config.ExecutorBackendMock}, log)
	require.NoError(t, err)
	assert.IsType(t, &MockRouter{}, mock)

	dex, err := New(&config.ExecutorConfig{
		Backend:  config.ExecutorBackendDex,
		Endpoint: "http://localhost:9999",
	}, log)
	require.NoError(t, err)
	assert.IsType(t, &DexRouter{}, dex)

	_, err = New(&config.ExecutorConfig{Backend: "cex"}, log)
	assert.Error(t, err)
}
