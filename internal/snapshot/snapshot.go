// Package snapshot persists session screening state so an interrupted
// session can resume. The Redis implementation backs production; the
// in-memory one backs tests and single-process runs without Redis.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lumenclass/selcoach/internal/screening"
)

// ErrNotFound reports a missing or expired snapshot.
var ErrNotFound = errors.New("snapshot not found")

// Saver stores and retrieves per-session screening snapshots.
type Saver interface {
	Save(ctx context.Context, sessionID string, snap screening.Snapshot) error
	Load(ctx context.Context, sessionID string) (screening.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

const keyPrefix = "selcoach:snapshot:"

// RedisSaver stores snapshots as JSON values with a TTL.
type RedisSaver struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSaver connects to Redis and verifies the connection. A zero ttl
// means snapshots never expire.
func NewRedisSaver(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisSaver, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisSaver{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func (r *RedisSaver) Save(ctx context.Context, sessionID string, snap screening.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.rdb.Set(ctx, keyPrefix+sessionID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	r.logger.Debug("snapshot saved", zap.String("session_id", sessionID))
	return nil
}

func (r *RedisSaver) Load(ctx context.Context, sessionID string) (screening.Snapshot, error) {
	data, err := r.rdb.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return screening.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return screening.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap screening.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return screening.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func (r *RedisSaver) Delete(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *RedisSaver) Close() error {
	return r.rdb.Close()
}

// MemorySaver is an in-process Saver.
type MemorySaver struct {
	mu    sync.RWMutex
	snaps map[string]screening.Snapshot
}

// NewMemorySaver creates an empty in-memory Saver.
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{snaps: make(map[string]screening.Snapshot)}
}

func (m *MemorySaver) Save(_ context.Context, sessionID string, snap screening.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[sessionID] = snap
	return nil
}

func (m *MemorySaver) Load(_ context.Context, sessionID string) (screening.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[sessionID]
	if !ok {
		return screening.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *MemorySaver) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, sessionID)
	return nil
}
