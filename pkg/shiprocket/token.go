package shiprocket

import (
	"context"
	"sync"
	"time"

	"github.com/bazaarly/bazaarly-backend/pkg/redis"
)

// TokenStore caches the carrier session token between requests.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string, ttl time.Duration) error
	Del(ctx context.Context) error
}

// RedisTokenStore shares one carrier session across every API instance.
type RedisTokenStore struct {
	client *redis.Client
	key    string
}

// NewRedisTokenStore builds a token store backed by the shared redis client.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{
		client: client,
		key:    client.CarrierTokenKey("shiprocket"),
	}
}

func (s *RedisTokenStore) Get(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key)
	if redis.IsMissing(err) {
		return "", nil
	}
	return token, err
}

func (s *RedisTokenStore) Set(ctx context.Context, token string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key, token, ttl)
}

func (s *RedisTokenStore) Del(ctx context.Context) error {
	return s.client.Del(ctx, s.key)
}

// MemoryTokenStore is a mutex-guarded, TTL-aware per-process cache used in
// tests and single-instance deployments without redis.
type MemoryTokenStore struct {
	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewMemoryTokenStore builds an empty in-process token cache.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || time.Now().After(s.expires) {
		return "", nil
	}
	return s.token, nil
}

func (s *MemoryTokenStore) Set(ctx context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expires = time.Now().Add(ttl)
	return nil
}

func (s *MemoryTokenStore) Del(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expires = time.Time{}
	return nil
}
