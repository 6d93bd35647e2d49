package fonts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ByLCY/typesetter/config"
)

// ResourceStore 保存 URL 到内嵌 data URL 的映射，可跨进程复用。
type ResourceStore interface {
	Get(ctx context.Context, url string) (string, bool, error)
	Set(ctx context.Context, url, embedded string) error
	Close() error
}

// MemoryStore 是进程内实现，主要用于测试。
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{data: map[string]string{}} }

func (s *MemoryStore) Get(_ context.Context, url string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[url]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, url, embedded string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[url] = embedded
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// RedisStore 把内嵌字体资源存入 redis。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(cfg *config.RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisStore{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get 从缓存读取内嵌资源
func (s *RedisStore) Get(ctx context.Context, url string) (string, bool, error) {
	v, err := s.client.Get(ctx, redisKey(url)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil // 缓存未命中
		}
		return "", false, err
	}
	return v, true, nil
}

// Set 写入内嵌资源
func (s *RedisStore) Set(ctx context.Context, url, embedded string) error {
	return s.client.Set(ctx, redisKey(url), embedded, s.ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(url string) string { return "font:" + url }
