package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vk/flowdash/internal/clock"
)

// ErrSessionNotFound is returned when a session is unknown, expired or revoked.
var ErrSessionNotFound = errors.New("session not found")

// Record is one live session.
type Record struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store persists live sessions keyed by token id.
type Store interface {
	Save(ctx context.Context, rec Record, ttl time.Duration) error
	Load(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
}

// Compile-time contract assertions.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Record
	clock    clock.Clock
}

// NewMemoryStore creates an empty in-memory store. A nil clock uses wall time.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.New()
	}
	return &MemoryStore{sessions: make(map[string]Record), clock: c}
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	if rec.ID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ExpiresAt = m.clock.Now().Add(ttl)
	m.sessions[rec.ID] = rec
	return nil
}

// Load implements Store. Expired records are evicted on read.
func (m *MemoryStore) Load(ctx context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[id]
	if !ok {
		return Record{}, ErrSessionNotFound
	}
	if !m.clock.Now().Before(rec.ExpiresAt) {
		delete(m.sessions, id)
		return Record{}, ErrSessionNotFound
	}
	return rec, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RedisStore keeps sessions in Redis with a native TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis instance at url and verifies it answers.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client, prefix: "flowdash:session:"}, nil
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	if rec.ID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	rec.ExpiresAt = time.Now().Add(ttl)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(rec.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context, id string) (Record, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrSessionNotFound
		}
		return Record{}, fmt.Errorf("failed to load session: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return rec, nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
