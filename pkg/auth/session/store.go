package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redisclient "github.com/angelmondragon/retaildesk/pkg/redis"
)

// MemoryStore keeps the session for the life of the process.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrNoSession
	}
	s := *m.session
	return &s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s Session) error {
	m.mu.Lock()
	m.session = &s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}

type kvStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SessionKey(name string) string
}

// RedisStore persists the session as JSON so separate CLI invocations share a login.
type RedisStore struct {
	kv  kvStore
	key string
	ttl time.Duration
}

// NewRedisStore stores the session under name. The key TTL is capped at ttl
// and at the token expiry, whichever comes first.
func NewRedisStore(client *redisclient.Client, name string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newRedisStore(client, name, ttl), nil
}

func newRedisStore(kv kvStore, name string, ttl time.Duration) *RedisStore {
	return &RedisStore{kv: kv, key: kv.SessionKey(name), ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context) (*Session, error) {
	raw, err := r.kv.Get(ctx, r.key)
	if errors.Is(err, redisclient.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := r.ttl
	if !s.ExpiresAt.IsZero() {
		untilExpiry := time.Until(s.ExpiresAt)
		if untilExpiry <= 0 {
			return fmt.Errorf("session already expired")
		}
		if ttl <= 0 || untilExpiry < ttl {
			ttl = untilExpiry
		}
	}
	return r.kv.Set(ctx, r.key, string(payload), ttl)
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.kv.Del(ctx, r.key)
}
