package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"cj_dropship_v1/pkg/cache"
	"cj_dropship_v1/pkg/cj"
)

// ==================== 测试辅助 ====================

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time            { return c.current }
func (c *fakeClock) Advance(d time.Duration)   { c.current = c.current.Add(d) }

// newTestTokenService 构造指向测试服务器的 TokenService
func newTestTokenService(serverURL string, clock *fakeClock) (*tokenService, cache.Store) {
	store := cache.NewMemoryStore()
	svc := &tokenService{
		store:    store,
		http:     resty.New(),
		baseURL:  serverURL,
		email:    "test@example.com",
		password: "secret",
		now:      clock.Now,
	}
	return svc, store
}

// authServer 返回固定认证响应的测试服务器
func authServer(t *testing.T, calls *int32, code int, expiry time.Time) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")

		data, _ := json.Marshal(cj.AuthData{
			AccessToken:           "token-abc",
			AccessTokenExpiryDate: expiry.Format(time.RFC3339),
			RefreshToken:          "refresh-xyz",
		})
		resp := cj.Response{Code: code, Result: code == cj.CodeOK, Message: "ok", Data: data}
		json.NewEncoder(w).Encode(resp)
	}))
}

// ==================== 节流 ====================

func TestTokenService_认证前先记录尝试时间(t *testing.T) {
	var calls int32
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}

	// 服务器返回业务失败
	server := authServer(t, &calls, 1601000, clock.current.Add(24*time.Hour))
	defer server.Close()

	svc, store := newTestTokenService(server.URL, clock)

	if _, err := svc.Authenticate(context.Background()); err == nil {
		t.Fatal("期望认证失败")
	}

	// 即使失败，尝试也应已记录，马上重试要被节流
	if _, ok := store.Get(cacheKeyLastAttempt); !ok {
		t.Fatal("失败的认证也应记录尝试时间")
	}

	_, err := svc.Authenticate(context.Background())
	var throttle *ThrottleError
	if !errors.As(err, &throttle) {
		t.Fatalf("期望节流错误, 实际 %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("节流期间不应再发请求, 实际请求 %d 次", calls)
	}
}

func TestTokenService_节流剩余时间(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	svc, store := newTestTokenService("http://unused", clock)

	// 100 秒前有过一次尝试，窗口 300 秒，应还需等 200 秒
	last := clock.current.Add(-100 * time.Second).Unix()
	store.Set(cacheKeyLastAttempt, formatUnix(last), lastAttemptTTL)

	info := svc.GetThrottleInfo()
	if info.CanAuthenticate {
		t.Fatal("节流窗口内不应允许认证")
	}
	if info.WaitSeconds != 200 {
		t.Errorf("剩余等待应为 200 秒, 实际 %d", info.WaitSeconds)
	}

	_, err := svc.Authenticate(context.Background())
	var throttle *ThrottleError
	if !errors.As(err, &throttle) {
		t.Fatalf("期望节流错误, 实际 %v", err)
	}
	if throttle.WaitSeconds != 200 {
		t.Errorf("节流错误等待秒数应为 200, 实际 %d", throttle.WaitSeconds)
	}
}

func TestTokenService_窗口过后允许认证(t *testing.T) {
	var calls int32
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	server := authServer(t, &calls, cj.CodeOK, clock.current.Add(24*time.Hour))
	defer server.Close()

	svc, store := newTestTokenService(server.URL, clock)
	store.Set(cacheKeyLastAttempt, formatUnix(clock.current.Unix()), lastAttemptTTL)

	clock.Advance(301 * time.Second)

	token, err := svc.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("窗口过后认证应成功: %v", err)
	}
	if token != "token-abc" {
		t.Errorf("token 不符: %s", token)
	}
}

// ==================== 过期边际 ====================

func TestTokenService_本地过期时间扣除安全边际(t *testing.T) {
	var calls int32
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}

	// 签发方给 2 小时有效期
	server := authServer(t, &calls, cj.CodeOK, clock.current.Add(2*time.Hour))
	defer server.Close()

	svc, _ := newTestTokenService(server.URL, clock)

	if _, err := svc.GetAccessToken(context.Background()); err != nil {
		t.Fatalf("认证失败: %v", err)
	}

	// 签发方过期前 1 小时零 1 秒，已过本地过期点(扣 3600 秒边际)
	clock.Advance(2*time.Hour - tokenExpirySafetyMargin + time.Second)
	if _, ok := svc.cachedValidToken(); ok {
		t.Error("过了安全边际的 token 不应再被视为有效")
	}
}

func TestTokenService_缓存命中不发请求(t *testing.T) {
	var calls int32
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	server := authServer(t, &calls, cj.CodeOK, clock.current.Add(24*time.Hour))
	defer server.Close()

	svc, _ := newTestTokenService(server.URL, clock)
	ctx := context.Background()

	if _, err := svc.GetAccessToken(ctx); err != nil {
		t.Fatalf("首次获取失败: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := svc.GetAccessToken(ctx); err != nil {
			t.Fatalf("缓存命中不应失败: %v", err)
		}
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("缓存有效期内只应请求 1 次, 实际 %d", calls)
	}
}

// ==================== 失效与刷新 ====================

func TestTokenService_Invalidate后走刷新(t *testing.T) {
	var calls int32
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	server := authServer(t, &calls, cj.CodeOK, clock.current.Add(24*time.Hour))
	defer server.Close()

	svc, store := newTestTokenService(server.URL, clock)
	ctx := context.Background()

	if _, err := svc.GetAccessToken(ctx); err != nil {
		t.Fatalf("首次获取失败: %v", err)
	}

	svc.Invalidate()
	if _, ok := store.Get(cacheKeyAccessToken); ok {
		t.Fatal("Invalidate 后缓存应被清除")
	}
	// refresh token 应保留
	if _, ok := store.Get(cacheKeyRefreshToken); !ok {
		t.Fatal("Invalidate 不应清除 refresh token")
	}

	// 再次获取应通过刷新成功，不受认证节流影响
	token, err := svc.GetAccessToken(ctx)
	if err != nil {
		t.Fatalf("刷新失败: %v", err)
	}
	if token != "token-abc" {
		t.Errorf("token 不符: %s", token)
	}
}

func TestTokenService_认证错误写入缓存(t *testing.T) {
	var calls int32
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	server := authServer(t, &calls, 1601000, clock.current)
	defer server.Close()

	svc, store := newTestTokenService(server.URL, clock)

	_, err := svc.Authenticate(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("期望认证错误, 实际 %v", err)
	}

	if _, ok := store.Get(cacheKeyAuthError); !ok {
		t.Error("认证错误应写入缓存供状态查询")
	}
	if info := svc.GetThrottleInfo(); info.LastError == "" {
		t.Error("节流状态应带上最近一次错误")
	}
}

func formatUnix(ts int64) string {
	return strconv.FormatInt(ts, 10)
}
