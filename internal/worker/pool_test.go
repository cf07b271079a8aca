package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func startPool(t *testing.T, workers int) *Pool {
	t.Helper()
	pool := NewPool(arbor.NewLogger(), workers)
	pool.Start()
	t.Cleanup(pool.Stop)
	return pool
}

func TestRun_ReturnsValue(t *testing.T) {
	pool := startPool(t, 2)

	value, err := Run(context.Background(), pool, "answer", time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestDo_PropagatesError(t *testing.T) {
	pool := startPool(t, 1)
	boom := errors.New("boom")

	err := pool.Do(context.Background(), "fail", time.Second, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestDo_Timeout(t *testing.T) {
	pool := startPool(t, 1)

	start := time.Now()
	err := pool.Do(context.Background(), "slow", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDo_TimeoutDoesNotWaitForStuckJob(t *testing.T) {
	pool := startPool(t, 1)
	release := make(chan struct{})
	defer close(release)

	err := pool.Do(context.Background(), "stuck", 20*time.Millisecond, func(ctx context.Context) error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDo_RecoversPanic(t *testing.T) {
	pool := startPool(t, 1)

	err := pool.Do(context.Background(), "panicky", time.Second, func(ctx context.Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// The worker survives the panic
	err = pool.Do(context.Background(), "after", time.Second, func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestDo_BoundsConcurrency(t *testing.T) {
	pool := startPool(t, 2)

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), "job", time.Second, func(ctx context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxActive, int32(2))
}

func TestDo_StoppedPool(t *testing.T) {
	pool := NewPool(arbor.NewLogger(), 1)
	pool.Start()
	pool.Stop()

	err := pool.Do(context.Background(), "late", time.Second, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolStopped)
}
