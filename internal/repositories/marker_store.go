package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// markerKeyPrefix 隔离本服务在共享 Redis 中的键空间。
const markerKeyPrefix = "listing:"

// MarkerStore 是带 TTL 的键值标记存储。
type MarkerStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

var (
	_ MarkerStore = (*RedisMarkerStore)(nil)
	_ MarkerStore = (*MemoryMarkerStore)(nil)
)

// RedisMarkerStore 把会话标记、最近访问标记与幂等记录保存在 Redis 中。
type RedisMarkerStore struct {
	client *redis.Client
	log    *log.Helper
}

// NewRedisMarkerStore 构造 Redis 标记存储。
func NewRedisMarkerStore(client *redis.Client, logger log.Logger) *RedisMarkerStore {
	return &RedisMarkerStore{client: client, log: log.NewHelper(logger)}
}

// Get 读取标记；不存在时 ok=false。
func (s *RedisMarkerStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, markerKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Set 写入标记；ttl<=0 表示不过期。
func (s *RedisMarkerStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, markerKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// SetNX 仅在键不存在时写入，返回是否写入成功。
func (s *RedisMarkerStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok, err := s.client.SetNX(ctx, markerKeyPrefix+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Delete 删除标记，不存在时忽略。
func (s *RedisMarkerStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, markerKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping 供 readiness 探针检查 Redis 可达性。
func (s *RedisMarkerStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// MemoryMarkerStore 是进程内标记存储，用于测试与单实例部署。
type MemoryMarkerStore struct {
	mu      sync.Mutex
	entries map[string]markerEntry
	clock   func() time.Time
}

type markerEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryMarkerStore 构造内存标记存储。
func NewMemoryMarkerStore() *MemoryMarkerStore {
	return &MemoryMarkerStore{entries: make(map[string]markerEntry), clock: time.Now}
}

// WithClock 替换过期判断使用的时钟。
func (s *MemoryMarkerStore) WithClock(fn func() time.Time) *MemoryMarkerStore {
	if fn != nil {
		s.clock = fn
	}
	return s
}

// Get 读取标记；已过期视为不存在。
func (s *MemoryMarkerStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(key)
	if !ok {
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set 写入标记。
func (s *MemoryMarkerStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = s.entry(value, ttl)
	return nil
}

// SetNX 仅在键不存在（或已过期）时写入。
func (s *MemoryMarkerStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = s.entry(value, ttl)
	return true, nil
}

// Delete 删除标记。
func (s *MemoryMarkerStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Ping 始终成功。
func (s *MemoryMarkerStore) Ping(context.Context) error { return nil }

func (s *MemoryMarkerStore) entry(value string, ttl time.Duration) markerEntry {
	e := markerEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.clock().Add(ttl)
	}
	return e
}

func (s *MemoryMarkerStore) live(key string) (markerEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return markerEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !s.clock().Before(entry.expiresAt) {
		delete(s.entries, key)
		return markerEntry{}, false
	}
	return entry, true
}
