package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, newFakeClock())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := rl.Check(ctx, "test-key")
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, newFakeClock())
	ctx := context.Background()

	rl.Check(ctx, "test-key")
	rl.Check(ctx, "test-key")
	result := rl.Check(ctx, "test-key")

	assert.False(t, result.Allowed)
	assert.Equal(t, "rate_limiter", result.Guard)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(2, time.Minute, clock)
	ctx := context.Background()

	rl.Check(ctx, "user")
	clock.Advance(30 * time.Second)
	rl.Check(ctx, "user")
	assert.False(t, rl.Check(ctx, "user").Allowed)

	clock.Advance(31 * time.Second)
	assert.True(t, rl.Check(ctx, "user").Allowed, "first hit left the window")
	assert.False(t, rl.Check(ctx, "user").Allowed)
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, newFakeClock())
	ctx := context.Background()

	r1 := rl.Check(ctx, "key-a")
	r2 := rl.Check(ctx, "key-b")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestRateLimiter_Sweep(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(5, time.Minute, clock)
	ctx := context.Background()

	rl.Check(ctx, "a")
	clock.Advance(45 * time.Second)
	rl.Check(ctx, "b")
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, rl.Sweep())
	assert.Equal(t, 0, rl.Sweep())
}

func TestRateLimiter_DropsExpiredKeysOnCheck(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(5, time.Minute, clock)
	ctx := context.Background()

	for i := 0; i < 10000; i++ {
		rl.Check(ctx, fmt.Sprintf("user-%d", i))
	}
	assert.Equal(t, 10000, rl.Len())

	clock.Advance(time.Hour)
	assert.True(t, rl.Check(ctx, "late").Allowed)
	assert.Equal(t, 1, rl.Len(), "expired keys must not be retained")
}

func TestRateLimiter_KeepsLiveKeysOnSweep(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(1, time.Minute, clock)
	ctx := context.Background()

	rl.Check(ctx, "a")
	clock.Advance(61 * time.Second)
	rl.Check(ctx, "b")
	clock.Advance(30 * time.Second)
	rl.Check(ctx, "c")

	assert.Equal(t, 2, rl.Len())
	assert.False(t, rl.Check(ctx, "b").Allowed, "b is still inside its window")
}

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	cb := NewCircuitBreaker(3, 5*time.Second, newFakeClock())
	ctx := context.Background()

	result := cb.Check(ctx, "sportsbet.bet.placed")
	assert.True(t, result.Allowed)
	assert.Equal(t, CircuitClosed, cb.State("sportsbet.bet.placed"))
}

func TestCircuitBreaker_OpensOnThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second, newFakeClock())
	ctx := context.Background()

	cb.Check(ctx, "topic")
	cb.RecordFailure("topic")
	cb.RecordFailure("topic")

	result := cb.Check(ctx, "topic")
	assert.False(t, result.Allowed)
	assert.Equal(t, "circuit_breaker", result.Guard)
	assert.Equal(t, "open", cb.State("topic").String())
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(1, 5*time.Second, clock)
	ctx := context.Background()

	cb.RecordFailure("topic")
	assert.False(t, cb.Check(ctx, "topic").Allowed)

	clock.Advance(6 * time.Second)
	assert.True(t, cb.Check(ctx, "topic").Allowed, "probe allowed")
	assert.Equal(t, CircuitHalfOpen, cb.State("topic"))

	t.Run("failed probe reopens", func(t *testing.T) {
		cb.RecordFailure("topic")
		assert.Equal(t, CircuitOpen, cb.State("topic"))
		assert.False(t, cb.Check(ctx, "topic").Allowed)
	})

	t.Run("successful probe closes", func(t *testing.T) {
		clock.Advance(6 * time.Second)
		require.True(t, cb.Check(ctx, "topic").Allowed)
		cb.RecordSuccess("topic")
		assert.Equal(t, CircuitClosed, cb.State("topic"))
	})
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second, newFakeClock())
	ctx := context.Background()

	cb.Check(ctx, "topic")
	cb.RecordFailure("topic")
	cb.RecordSuccess("topic")
	cb.RecordFailure("topic")

	result := cb.Check(ctx, "topic")
	assert.True(t, result.Allowed)
}

// --- KeyStore Tests ---

func TestMemoryKeyStore_ReserveOnce(t *testing.T) {
	ks := NewMemoryKeyStore(newFakeClock())
	ctx := context.Background()

	ok, err := ks.Reserve(ctx, "req-123", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ks.Reserve(ctx, "req-123", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKeyStore_ReleaseAllowsRetry(t *testing.T) {
	ks := NewMemoryKeyStore(newFakeClock())
	ctx := context.Background()

	_, _ = ks.Reserve(ctx, "req-456", time.Minute)
	require.NoError(t, ks.Release(ctx, "req-456"))

	ok, err := ks.Reserve(ctx, "req-456", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryKeyStore_Expires(t *testing.T) {
	clock := newFakeClock()
	ks := NewMemoryKeyStore(clock)
	ctx := context.Background()

	_, _ = ks.Reserve(ctx, "req-789", 10*time.Second)
	clock.Advance(10 * time.Second)

	ok, err := ks.Reserve(ctx, "req-789", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

type fakeRedis struct {
	redis.Cmdable
	keys   map[string]time.Duration
	setErr error
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) *redis.BoolCmd {
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisKeyStore(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{keys: make(map[string]time.Duration)}
	ks := NewRedisKeyStore(fake, "sportsbet:idem:")

	ok, err := ks.Reserve(ctx, "u1:k1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, fake.keys["sportsbet:idem:u1:k1"])

	ok, err = ks.Reserve(ctx, "u1:k1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ks.Release(ctx, "u1:k1"))
	assert.Empty(t, fake.keys)

	fake.setErr = errors.New("dial tcp: connection refused")
	_, err = ks.Reserve(ctx, "u1:k2", time.Second)
	assert.ErrorContains(t, err, "connection refused")
}
