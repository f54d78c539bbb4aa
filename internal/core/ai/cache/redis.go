package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kitchen-bot/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStore 以 Redis 保存模型回應，多個實例可共用
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore 創建 Redis 快取；client 由呼叫者管理生命週期
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Get 獲取緩存
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			common.LogWarn("讀取 Redis 快取失敗", zap.Error(err))
		}
		common.LogCacheMiss("redis", key)
		return "", false
	}
	common.LogCacheHit("redis", key)
	return val, true
}

// Set 設置緩存
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Close 共用連線由持有者關閉
func (s *RedisStore) Close() error {
	return nil
}
