package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// TokenKey is the fixed key the bearer token is stored under.
const TokenKey = "token"

// Store keeps small per-browser values keyed by session id.
type Store interface {
	Get(ctx context.Context, sid, key string) (string, error)
	Set(ctx context.Context, sid, key, value string) error
	Clear(ctx context.Context, sid string) error
}

func NewID() string {
	return ulid.Make().String()
}

type memoryEntry struct {
	values  map[string]string
	expires time.Time
}

type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	data map[string]*memoryEntry
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, data: map[string]*memoryEntry{}, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, sid, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.data[sid]
	if !ok {
		return "", nil
	}
	if m.ttl > 0 && m.now().After(entry.expires) {
		delete(m.data, sid)
		return "", nil
	}
	return entry.values[key], nil
}

func (m *MemoryStore) Set(_ context.Context, sid, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.data[sid]
	if !ok {
		entry = &memoryEntry{values: map[string]string{}}
		m.data[sid] = entry
	}
	entry.values[key] = value
	entry.expires = m.now().Add(m.ttl)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sid)
	return nil
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore keeps each session as a hash that expires after TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("no Redis address provided")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

func (s *RedisStore) key(sid string) string {
	return "estatecrm:session:" + sid
}

func (s *RedisStore) Get(ctx context.Context, sid, key string) (string, error) {
	value, err := s.client.HGet(ctx, s.key(sid), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, sid, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(sid), key, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(sid), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write session %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sid string) error {
	return s.client.Del(ctx, s.key(sid)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
