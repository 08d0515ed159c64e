package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ==================== Redis 实现 ====================

// RedisStore Redis 缓存实现
// 多个 worker 进程共享 token / 限流状态时使用
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore 连接 Redis 并返回 Store 实现
// prefix 用于隔离不同业务的键空间
func NewRedisStore(addr, password, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis 连接失败: %v", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *RedisStore) Get(key string) (string, bool) {
	val, err := r.client.Get(context.Background(), r.key(key)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *RedisStore) Set(key string, value string, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	r.client.Set(context.Background(), r.key(key), value, ttl)
}

func (r *RedisStore) Delete(key string) {
	r.client.Del(context.Background(), r.key(key))
}

// Close 关闭连接
func (r *RedisStore) Close() error {
	return r.client.Close()
}
