package cache

import (
	"sync"
	"time"
)

// Store 键值缓存抽象
// Token 状态、限流时间戳和搜索结果缓存都走这一层
// 单机部署用内存实现，多进程部署换 Redis 实现
type Store interface {
	// Get 读取缓存，未命中或已过期返回 ("", false)
	Get(key string) (string, bool)

	// Set 写入缓存，ttl <= 0 表示不过期
	Set(key string, value string, ttl time.Duration)

	// Delete 删除缓存
	Delete(key string)
}

// ==================== 内存实现 ====================

// 使用 sync.Map 保证并发安全
type MemoryStore struct {
	items sync.Map
}

// cacheItem 内部结构，包含值和过期时间
type cacheItem struct {
	value      string
	expiration int64 // UnixNano，0 表示不过期
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Set 设置缓存
func (m *MemoryStore) Set(key string, value string, ttl time.Duration) {
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}

	m.items.Store(key, cacheItem{
		value:      value,
		expiration: exp,
	})
}

// Get 获取缓存并验证是否过期
func (m *MemoryStore) Get(key string) (string, bool) {
	val, ok := m.items.Load(key)
	if !ok {
		return "", false
	}

	item := val.(cacheItem)

	// 检查是否过期
	if item.expiration > 0 && time.Now().UnixNano() > item.expiration {
		m.items.Delete(key) // 懒删除
		return "", false
	}

	return item.value, true
}

// Delete 删除缓存
func (m *MemoryStore) Delete(key string) {
	m.items.Delete(key)
}
