package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eternalabs/order-execution-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(orderID string) *domain.Job {
	return &domain.Job{
		Order: domain.Order{
			ID:        orderID,
			UserID:    "user-1",
			Type:      domain.OrderTypeMarket,
			TokenIn:   "USDC",
			TokenOut:  "SOL",
			AmountIn:  5,
			CreatedAt: time.Now(),
		},
		Status:      domain.StatusQueued,
		MaxAttempts: 3,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.CreateJob(ctx, newTestJob("order-1")))

	job, err := store.GetJob(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, job.Status)
	assert.Equal(t, "USDC", job.Order.TokenIn)
	assert.Equal(t, 0, job.Order.Attempts)

	_, err = store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestMemoryStore_ClaimJob_MutualExclusion(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, newTestJob("order-1")))

	const workers = 16
	var claimed int64
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ClaimJob(ctx, "order-1", "worker"); err == nil {
				atomic.AddInt64(&claimed, 1)
			}
		}()
	}
	wg.Wait()

	// Exactly one worker wins the claim
	assert.Equal(t, int64(1), claimed)

	job, err := store.GetJob(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, job.Status)
}

func TestMemoryStore_RetryCycle(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, newTestJob("order-1")))

	_, err := store.ClaimJob(ctx, "order-1", "worker-a")
	require.NoError(t, err)

	require.NoError(t, store.ScheduleRetry(ctx, "order-1", 1, "slippage exceeded"))

	job, err := store.GetJob(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, job.Status)
	assert.Equal(t, 1, job.Order.Attempts)
	assert.Equal(t, "slippage exceeded", job.LastError)
	assert.Empty(t, job.WorkerID)

	// The job is claimable again after the retry was scheduled
	reclaimed, err := store.ClaimJob(ctx, "order-1", "worker-b")
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed.Order.Attempts)

	// Order fields survive the retry cycle untouched
	assert.Equal(t, "USDC", reclaimed.Order.TokenIn)
	assert.Equal(t, "SOL", reclaimed.Order.TokenOut)
	assert.Equal(t, float64(5), reclaimed.Order.AmountIn)
	assert.Equal(t, "user-1", reclaimed.Order.UserID)
}

func TestMemoryStore_ClaimJob_ExpiredLeaseReclaim(t *testing.T) {
	store := NewMemoryStore(50 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, newTestJob("order-1")))

	_, err := store.ClaimJob(ctx, "order-1", "worker-a")
	require.NoError(t, err)

	// While the lease is fresh the claim stays exclusive
	_, err = store.ClaimJob(ctx, "order-1", "worker-b")
	assert.ErrorIs(t, err, domain.ErrJobAlreadyClaimed)

	// After worker-a's lease expires another worker takes the job over
	time.Sleep(70 * time.Millisecond)
	reclaimed, err := store.ClaimJob(ctx, "order-1", "worker-b")
	require.NoError(t, err)
	assert.Equal(t, "worker-b", reclaimed.WorkerID)
	assert.Equal(t, domain.StatusProcessing, reclaimed.Status)

	// Terminal rows never become claimable, expired or not
	require.NoError(t, store.MarkConfirmed(ctx, "order-1", &domain.ExecutionResult{TxHash: "0xabc", AmountOut: 4.9}))
	time.Sleep(70 * time.Millisecond)
	_, err = store.ClaimJob(ctx, "order-1", "worker-c")
	assert.ErrorIs(t, err, domain.ErrJobAlreadyClaimed)
}

func TestMemoryStore_TerminalTransitions(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		store := NewMemoryStore(time.Minute)
		ctx := context.Background()
		require.NoError(t, store.CreateJob(ctx, newTestJob("order-1")))
		_, err := store.ClaimJob(ctx, "order-1", "worker-a")
		require.NoError(t, err)

		result := &domain.ExecutionResult{TxHash: "0xabc", AmountOut: 4.9}
		require.NoError(t, store.MarkConfirmed(ctx, "order-1", result))

		job, err := store.GetJob(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, job.Status)
		require.NotNil(t, job.Result)
		assert.Equal(t, "0xabc", job.Result.TxHash)

		// Terminal means terminal: no further transitions
		assert.ErrorIs(t, store.MarkFailed(ctx, "order-1", 3, "late failure"), domain.ErrJobNotProcessing)
		assert.ErrorIs(t, store.MarkConfirmed(ctx, "order-1", result), domain.ErrJobNotProcessing)
		_, err = store.ClaimJob(ctx, "order-1", "worker-b")
		assert.ErrorIs(t, err, domain.ErrJobAlreadyClaimed)
	})

	t.Run("failed", func(t *testing.T) {
		store := NewMemoryStore(time.Minute)
		ctx := context.Background()
		require.NoError(t, store.CreateJob(ctx, newTestJob("order-1")))
		_, err := store.ClaimJob(ctx, "order-1", "worker-a")
		require.NoError(t, err)

		require.NoError(t, store.MarkFailed(ctx, "order-1", 3, "insufficient liquidity"))

		job, err := store.GetJob(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, job.Status)
		assert.Equal(t, 3, job.Order.Attempts)
		assert.Equal(t, "insufficient liquidity", job.LastError)

		assert.ErrorIs(t, store.MarkConfirmed(ctx, "order-1", nil), domain.ErrJobNotProcessing)
	})
}

func TestMemoryStore_GetJobReturnsCopy(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, newTestJob("order-1")))

	job, err := store.GetJob(ctx, "order-1")
	require.NoError(t, err)
	job.Status = domain.StatusFailed
	job.Order.AmountIn = 999

	fresh, err := store.GetJob(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, fresh.Status)
	assert.Equal(t, float64(5), fresh.Order.AmountIn)
}
