package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flowershop-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_AdmitsNThenLimits(t *testing.T) {
	clk := newManualClock()
	l := NewMemoryLimiter(WithMemoryClock(clk.Now))
	ctx := context.Background()
	windows := []domain.Window{{MaxRequests: 5, Seconds: 1}}

	for i := 0; i < 5; i++ {
		res, err := l.Check(ctx, "127.0.0.1", "/test", windows)
		require.NoError(t, err)
		require.False(t, res.Limited, "call %d", i+1)
	}

	res, err := l.Check(ctx, "127.0.0.1", "/test", windows)
	require.NoError(t, err)
	assert.True(t, res.Limited)
	assert.Equal(t, int64(5), res.Usage[0].Count)

	clk.Advance(1100 * time.Millisecond)
	res, err = l.Check(ctx, "127.0.0.1", "/test", windows)
	require.NoError(t, err)
	assert.False(t, res.Limited)
}

func TestMemoryLimiter_RejectedAttemptsAreCounted(t *testing.T) {
	clk := newManualClock()
	l := NewMemoryLimiter(WithMemoryClock(clk.Now))
	windows := []domain.Window{{MaxRequests: 2, Seconds: 1}}

	for i := 0; i < 6; i++ {
		_, err := l.Check(context.Background(), "1.2.3.4", "/test", windows)
		require.NoError(t, err)
	}
	assert.Equal(t, 6, l.Records("1.2.3.4", "/test"))
}

func TestMemoryLimiter_IsolationAndEmptyPolicy(t *testing.T) {
	l := NewMemoryLimiter(WithMemoryClock(newManualClock().Now))
	ctx := context.Background()
	windows := []domain.Window{{MaxRequests: 1, Seconds: 60}}

	res, err := l.Check(ctx, "a", "/x", windows)
	require.NoError(t, err)
	require.False(t, res.Limited)

	res, err = l.Check(ctx, "b", "/x", windows)
	require.NoError(t, err)
	assert.False(t, res.Limited, "other identifier")

	res, err = l.Check(ctx, "a", "/y", windows)
	require.NoError(t, err)
	assert.False(t, res.Limited, "other endpoint")

	res, err = l.Check(ctx, "a", "/x", windows)
	require.NoError(t, err)
	assert.True(t, res.Limited)

	res, err = l.Check(ctx, "a", "/x", nil)
	require.NoError(t, err)
	assert.False(t, res.Limited)
	assert.Equal(t, 3, l.Len())
}

func TestMemoryLimiter_PrunesToWidestWindow(t *testing.T) {
	clk := newManualClock()
	l := NewMemoryLimiter(WithMemoryClock(clk.Now))

	for i := 0; i < 100; i++ {
		_, err := l.Check(context.Background(), "1.2.3.4", "/test", []domain.Window{{MaxRequests: 5, Seconds: 1}})
		require.NoError(t, err)
		clk.Advance(500 * time.Millisecond)
	}
	assert.LessOrEqual(t, l.Records("1.2.3.4", "/test"), 3)
}

func TestMemoryLimiter_CleanupRemovesExpiredKeys(t *testing.T) {
	clk := newManualClock()
	l := NewMemoryLimiter(WithMemoryClock(clk.Now))

	_, err := l.Check(context.Background(), "1.2.3.4", "/short", []domain.Window{{MaxRequests: 5, Seconds: 1}})
	require.NoError(t, err)
	_, err = l.Check(context.Background(), "1.2.3.4", "/long", []domain.Window{{MaxRequests: 5, Seconds: 60}})
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())

	clk.Advance(2 * time.Second)
	l.Cleanup()

	assert.Equal(t, 1, l.Len())
	assert.Zero(t, l.Records("1.2.3.4", "/short"))
	assert.Equal(t, 1, l.Records("1.2.3.4", "/long"))
}

func TestMemoryLimiter_JanitorRunsAtConfiguredInterval(t *testing.T) {
	clk := newManualClock()
	l := NewMemoryLimiter(WithMemoryClock(clk.Now), WithCleanupEvery(5*time.Millisecond))

	_, err := l.Check(context.Background(), "1.2.3.4", "/short", []domain.Window{{MaxRequests: 5, Seconds: 1}})
	require.NoError(t, err)
	require.Equal(t, 1, l.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.StartJanitor(ctx)

	clk.Advance(2 * time.Second)
	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryLimiter_JanitorDisabledWithZeroInterval(t *testing.T) {
	clk := newManualClock()
	l := NewMemoryLimiter(WithMemoryClock(clk.Now), WithCleanupEvery(0))

	_, err := l.Check(context.Background(), "1.2.3.4", "/short", []domain.Window{{MaxRequests: 5, Seconds: 1}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.StartJanitor(ctx)

	clk.Advance(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_ConcurrentCallersSameKey(t *testing.T) {
	l := NewMemoryLimiter(WithMemoryClock(newManualClock().Now))

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Check(context.Background(), "10.0.0.1", "/users/login", []domain.Window{{MaxRequests: 5, Seconds: 60}})
			if err == nil && !res.Limited {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), admitted)
}
