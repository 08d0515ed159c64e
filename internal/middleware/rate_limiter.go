package middleware

import (
	"fmt"
	"sync"
	"time"
)

// ==================== 操作冷却限制器 ====================

// CooldownLimiter 操作冷却限制器
// 同一个 key 在冷却窗口内只允许触发一次，用于搜索冷却和手动同步防抖
type CooldownLimiter struct {
	mu        sync.Mutex
	lastRun   map[string]time.Time
	now       func() time.Time // 可注入时钟，便于测试
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool  // 是否允许执行
	RetryAfter int64 // 需等待秒数（不允许时）
}

// NewCooldownLimiter 创建冷却限制器
func NewCooldownLimiter() *CooldownLimiter {
	return &CooldownLimiter{
		lastRun: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Check 检查并记录一次操作
// 允许时立即记录本次时间，冷却窗口从本次开始计算
func (l *CooldownLimiter) Check(key string, cooldown time.Duration) CheckResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.lastRun[key]; ok {
		elapsed := now.Sub(last)
		if elapsed < cooldown {
			remaining := cooldown - elapsed
			return CheckResult{
				Allowed:    false,
				RetryAfter: int64(remaining.Seconds()) + 1,
			}
		}
	}

	l.lastRun[key] = now
	return CheckResult{Allowed: true}
}

// Reset 清除某个 key 的冷却记录
func (l *CooldownLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.lastRun, key)
}

// RetryMessage 构造冷却提示信息
func RetryMessage(r CheckResult) string {
	return fmt.Sprintf("操作过于频繁，请 %d 秒后重试", r.RetryAfter)
}
