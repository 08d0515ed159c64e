package middleware

import (
	"testing"
	"time"
)

func TestCooldownLimiter_冷却窗口(t *testing.T) {
	limiter := NewCooldownLimiter()
	base := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return base }

	// 首次允许
	if r := limiter.Check("sync", 30*time.Second); !r.Allowed {
		t.Fatal("首次触发应允许")
	}

	// 窗口内拒绝并给出等待时间
	base = base.Add(10 * time.Second)
	r := limiter.Check("sync", 30*time.Second)
	if r.Allowed {
		t.Fatal("冷却窗口内应拒绝")
	}
	if r.RetryAfter != 21 {
		t.Errorf("剩余等待应为 21 秒, 实际 %d", r.RetryAfter)
	}

	// 不同 key 互不影响
	if r := limiter.Check("other", 30*time.Second); !r.Allowed {
		t.Error("不同 key 不应被波及")
	}

	// 窗口过后允许
	base = base.Add(25 * time.Second)
	if r := limiter.Check("sync", 30*time.Second); !r.Allowed {
		t.Error("窗口过后应允许")
	}
}

func TestCooldownLimiter_Reset(t *testing.T) {
	limiter := NewCooldownLimiter()

	limiter.Check("k", time.Hour)
	if r := limiter.Check("k", time.Hour); r.Allowed {
		t.Fatal("窗口内应拒绝")
	}

	limiter.Reset("k")
	if r := limiter.Check("k", time.Hour); !r.Allowed {
		t.Error("重置后应允许")
	}
}
