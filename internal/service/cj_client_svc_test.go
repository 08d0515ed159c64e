package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"cj_dropship_v1/pkg/cache"
	"cj_dropship_v1/pkg/cj"
)

// ==================== 测试辅助 ====================

// stubTokens 固定返回 token 的 TokenService 替身
type stubTokens struct {
	token       string
	err         error
	invalidated int32
}

func (s *stubTokens) GetAccessToken(ctx context.Context) (string, error) { return s.token, s.err }
func (s *stubTokens) Authenticate(ctx context.Context) (string, error)   { return s.token, s.err }
func (s *stubTokens) GetThrottleInfo() ThrottleInfo                      { return ThrottleInfo{CanAuthenticate: true} }
func (s *stubTokens) Invalidate()                                        { atomic.AddInt32(&s.invalidated, 1) }

// newTestCJClient 构造指向测试服务器的客户端，限速和真实等待都关掉
func newTestCJClient(serverURL string, tokens TokenService) (*cjClient, *[]time.Duration) {
	var slept []time.Duration
	client := &cjClient{
		tokens:  tokens,
		store:   cache.NewMemoryStore(),
		http:    resty.New(),
		baseURL: serverURL,
		limiter: rate.NewLimiter(rate.Inf, 0),
		sleep:   func(d time.Duration) { slept = append(slept, d) },
		now:     time.Now,
	}
	return client, &slept
}

func writeCJResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	raw, _ := json.Marshal(data)
	json.NewEncoder(w).Encode(cj.Response{
		Code:   code,
		Result: code == cj.CodeOK,
		Data:   raw,
	})
}

// ==================== token 重试 ====================

func TestCJClient_Token失效后重试(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		// 前两次返回 token 过期，第三次成功
		if n <= 2 {
			writeCJResponse(w, cj.CodeTokenExpired, nil)
			return
		}
		writeCJResponse(w, cj.CodeOK, &cj.ProductDetail{Pid: "P1", ProductNameEn: "Widget"})
	}))
	defer server.Close()

	tokens := &stubTokens{token: "tok"}
	client, _ := newTestCJClient(server.URL, tokens)

	detail, err := client.GetProductDetails(context.Background(), "P1")
	if err != nil {
		t.Fatalf("重试后应成功: %v", err)
	}
	if detail.Pid != "P1" {
		t.Errorf("详情不符: %+v", detail)
	}

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("应恰好请求 3 次(首次 + 2 次重试), 实际 %d", got)
	}
	if tokens.invalidated != 2 {
		t.Errorf("每次 token 错误都应触发失效, 实际 %d 次", tokens.invalidated)
	}
}

func TestCJClient_Token重试耗尽(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeCJResponse(w, cj.CodeTokenInvalid, nil)
	}))
	defer server.Close()

	client, _ := newTestCJClient(server.URL, &stubTokens{token: "tok"})

	_, err := client.GetProductDetails(context.Background(), "P1")
	var tokenErr *TokenExpiredError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("期望 token 失效错误, 实际 %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("重试耗尽应共请求 3 次, 实际 %d", got)
	}
}

// ==================== 限流退避 ====================

func TestCJClient_只读端点限流退避重试(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeCJResponse(w, cj.CodeRateLimited, nil)
			return
		}
		writeCJResponse(w, cj.CodeOK, &cj.ProductDetail{Pid: "P1"})
	}))
	defer server.Close()

	client, slept := newTestCJClient(server.URL, &stubTokens{token: "tok"})

	if _, err := client.GetProductDetails(context.Background(), "P1"); err != nil {
		t.Fatalf("退避后应成功: %v", err)
	}
	if len(*slept) != 1 || (*slept)[0] != rateLimitBackoff {
		t.Errorf("应退避 %s 一次, 实际 %v", rateLimitBackoff, *slept)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("应请求 2 次, 实际 %d", calls)
	}
}

func TestCJClient_写端点限流不重试(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeCJResponse(w, cj.CodeRateLimited, nil)
	}))
	defer server.Close()

	client, slept := newTestCJClient(server.URL, &stubTokens{token: "tok"})

	_, err := client.CreateOrder(context.Background(), &cj.OrderRequest{
		OrderNumber: "100000001",
		Products:    []cj.OrderProduct{{Pid: "P1", Quantity: 1}},
	})
	var transient *TransientApiError
	if !errors.As(err, &transient) {
		t.Fatalf("期望临时错误, 实际 %v", err)
	}
	if len(*slept) != 0 {
		t.Errorf("写端点不应退避重试: %v", *slept)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("写端点只应请求 1 次, 实际 %d", calls)
	}
}

// ==================== 搜索 ====================

func TestCJClient_搜索分页大小下限(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pageSize"); got != "10" {
			t.Errorf("pageSize 应提升到 10, 实际 %s", got)
		}
		writeCJResponse(w, cj.CodeOK, &cj.ProductListData{PageNum: 1, PageSize: 10})
	}))
	defer server.Close()

	client, _ := newTestCJClient(server.URL, &stubTokens{token: "tok"})

	if _, err := client.SearchProducts(context.Background(), SearchParams{Page: 1, Limit: 5}); err != nil {
		t.Fatalf("搜索失败: %v", err)
	}
}

func TestCJClient_搜索结果缓存(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeCJResponse(w, cj.CodeOK, &cj.ProductListData{Total: 42})
	}))
	defer server.Close()

	client, _ := newTestCJClient(server.URL, &stubTokens{token: "tok"})
	ctx := context.Background()
	params := SearchParams{Page: 1, Limit: 20, Keyword: "lamp"}

	first, err := client.SearchProducts(ctx, params)
	if err != nil {
		t.Fatalf("首次搜索失败: %v", err)
	}
	second, err := client.SearchProducts(ctx, params)
	if err != nil {
		t.Fatalf("二次搜索失败: %v", err)
	}

	if first.Total != 42 || second.Total != 42 {
		t.Errorf("结果不符: %d / %d", first.Total, second.Total)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("相同参数应命中缓存, 实际请求 %d 次", calls)
	}
}

func TestCJClient_搜索冷却(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeCJResponse(w, cj.CodeOK, &cj.ProductListData{})
	}))
	defer server.Close()

	client, _ := newTestCJClient(server.URL, &stubTokens{token: "tok"})
	ctx := context.Background()

	if _, err := client.SearchProducts(ctx, SearchParams{Keyword: "lamp"}); err != nil {
		t.Fatalf("首次搜索失败: %v", err)
	}

	// 不同参数的搜索在冷却窗口内应被拒绝
	_, err := client.SearchProducts(ctx, SearchParams{Keyword: "chair"})
	var throttle *ThrottleError
	if !errors.As(err, &throttle) {
		t.Fatalf("期望冷却错误, 实际 %v", err)
	}
	if throttle.WaitSeconds <= 0 || throttle.WaitSeconds > 61 {
		t.Errorf("等待秒数异常: %d", throttle.WaitSeconds)
	}

	// 冷却过后允许
	client.lastSearch = time.Now().Add(-2 * searchCooldown)
	if _, err := client.SearchProducts(ctx, SearchParams{Keyword: "chair"}); err != nil {
		t.Fatalf("冷却过后应允许搜索: %v", err)
	}

	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("应实际请求 2 次, 实际 %d", calls)
	}
}
