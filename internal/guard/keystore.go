package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyStore holds short-lived reservations for idempotency keys that are
// currently being processed. A reservation expires after its TTL so a crashed
// request cannot block retries forever.
type KeyStore interface {
	// Reserve claims key for ttl. It returns false if the key is already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops a reservation.
	Release(ctx context.Context, key string) error
}

// MemoryKeyStore is a single-process KeyStore.
type MemoryKeyStore struct {
	mu    sync.Mutex
	held  map[string]time.Time // key -> expiry
	clock Clock
}

// NewMemoryKeyStore creates an in-memory key store. A nil clock uses the
// system clock.
func NewMemoryKeyStore(clock Clock) *MemoryKeyStore {
	return &MemoryKeyStore{
		held:  make(map[string]time.Time),
		clock: orSystem(clock),
	}
}

func (s *MemoryKeyStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if exp, ok := s.held[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.held[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryKeyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, key)
	return nil
}

// RedisKeyStore shares reservations between API replicas using SET NX PX.
type RedisKeyStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisKeyStore creates a Redis-backed key store. Keys are namespaced
// under prefix.
func NewRedisKeyStore(client redis.Cmdable, prefix string) *RedisKeyStore {
	return &RedisKeyStore{client: client, prefix: prefix}
}

func (s *RedisKeyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

func (s *RedisKeyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
