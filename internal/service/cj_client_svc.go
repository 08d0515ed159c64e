package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"cj_dropship_v1/pkg/cache"
	"cj_dropship_v1/pkg/cj"
)

// ==================== 常量 ====================

const (
	// token 类错误最多额外重试 2 次（含首次共 3 次请求）
	maxTokenRetries = 2

	// 网关限流后的固定退避时长，仅只读端点退避重试
	rateLimitBackoff = 5 * time.Second

	// 搜索结果缓存
	searchCachePrefix = "cj_search_"
	searchCacheTTL    = 300 * time.Second

	// 两次真实搜索（未命中缓存）之间的最短间隔
	searchCooldown = 60 * time.Second

	// CJ 商品列表的最小分页大小
	minPageSize = 10
)

// ==================== CJClient ====================

// SearchParams 商品搜索参数
type SearchParams struct {
	Page       int
	Limit      int
	Keyword    string
	Categories []string
}

// CJClient 封装 CJ 供应商 API 的业务调用
// token 获取、重试和限流退避都收在这一层，上层服务拿到的是干净的数据或类型化错误
type CJClient interface {
	SearchProducts(ctx context.Context, params SearchParams) (*cj.ProductListData, error)
	GetProductDetails(ctx context.Context, pid string) (*cj.ProductDetail, error)
	GetProductVariants(ctx context.Context, pid string) ([]cj.VariantRecord, error)
	CreateOrder(ctx context.Context, order *cj.OrderRequest) (*cj.OrderData, error)
	GetOrderDetails(ctx context.Context, orderID string) (*cj.OrderData, error)
	GetTracking(ctx context.Context, trackingNumber string) (*cj.TrackingData, error)
}

type cjClient struct {
	tokens  TokenService
	store   cache.Store
	http    *resty.Client
	baseURL string

	// 主动限速，避免等网关返回 1600200 才被动退避
	limiter *rate.Limiter

	// 搜索冷却：缓存未命中的搜索才占用冷却窗口
	searchMu   sync.Mutex
	lastSearch time.Time

	sleep func(time.Duration) // 可注入，测试时跳过真实等待
	now   func() time.Time
}

func NewCJClient(tokens TokenService, store cache.Store, baseURL string) CJClient {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")

	return &cjClient{
		tokens:  tokens,
		store:   store,
		http:    client,
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// ==================== 商品 ====================

// SearchProducts 搜索供应商商品
// 相同参数 5 分钟内命中缓存，不打供应商接口
func (s *cjClient) SearchProducts(ctx context.Context, params SearchParams) (*cj.ProductListData, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	// CJ 要求分页大小不低于 10，低于则静默提升
	if params.Limit < minPageSize {
		params.Limit = minPageSize
	}

	cacheKey := searchCacheKey(params)
	if cached, ok := s.store.Get(cacheKey); ok {
		var data cj.ProductListData
		if err := json.Unmarshal([]byte(cached), &data); err == nil {
			return &data, nil
		}
	}

	// 打真实接口前过搜索冷却
	if wait := s.searchCooldownRemaining(); wait > 0 {
		return nil, &ThrottleError{WaitSeconds: wait}
	}

	query := url.Values{}
	query.Set("pageNum", strconv.Itoa(params.Page))
	query.Set("pageSize", strconv.Itoa(params.Limit))
	if params.Keyword != "" {
		query.Set("productNameEn", params.Keyword)
	}
	if len(params.Categories) > 0 {
		query.Set("categoryId", strings.Join(params.Categories, ","))
	}

	resp, err := s.doRequest(ctx, "GET", cj.EndpointProductList, query, nil)
	if err != nil {
		return nil, err
	}

	var data cj.ProductListData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("解析商品列表失败: %w", err)
	}

	if raw, err := json.Marshal(&data); err == nil {
		s.store.Set(cacheKey, string(raw), searchCacheTTL)
	}
	return &data, nil
}

// GetProductDetails 查询商品详情
func (s *cjClient) GetProductDetails(ctx context.Context, pid string) (*cj.ProductDetail, error) {
	if pid == "" {
		return nil, &ValidationError{Message: "pid 不能为空"}
	}

	query := url.Values{}
	query.Set("pid", pid)

	resp, err := s.doRequest(ctx, "GET", cj.EndpointProductQuery, query, nil)
	if err != nil {
		return nil, err
	}

	var detail cj.ProductDetail
	if err := json.Unmarshal(resp.Data, &detail); err != nil {
		return nil, fmt.Errorf("解析商品详情失败: %w", err)
	}
	return &detail, nil
}

// GetProductVariants 查询商品变体列表
func (s *cjClient) GetProductVariants(ctx context.Context, pid string) ([]cj.VariantRecord, error) {
	if pid == "" {
		return nil, &ValidationError{Message: "pid 不能为空"}
	}

	query := url.Values{}
	query.Set("pid", pid)

	resp, err := s.doRequest(ctx, "GET", cj.EndpointVariantQuery, query, nil)
	if err != nil {
		return nil, err
	}

	var variants []cj.VariantRecord
	if err := json.Unmarshal(resp.Data, &variants); err != nil {
		return nil, fmt.Errorf("解析变体列表失败: %w", err)
	}
	return variants, nil
}

// ==================== 订单 ====================

// CreateOrder 在 CJ 侧创建订单
// 写端点不做限流退避，由调用方决定是否重试
func (s *cjClient) CreateOrder(ctx context.Context, order *cj.OrderRequest) (*cj.OrderData, error) {
	if order == nil || len(order.Products) == 0 {
		return nil, &ValidationError{Message: "订单商品不能为空"}
	}

	resp, err := s.doRequest(ctx, "POST", cj.EndpointOrderCreate, nil, order)
	if err != nil {
		return nil, err
	}

	var data cj.OrderData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("解析订单响应失败: %w", err)
	}
	return &data, nil
}

// GetOrderDetails 查询 CJ 订单详情
func (s *cjClient) GetOrderDetails(ctx context.Context, orderID string) (*cj.OrderData, error) {
	if orderID == "" {
		return nil, &ValidationError{Message: "orderId 不能为空"}
	}

	query := url.Values{}
	query.Set("orderId", orderID)

	resp, err := s.doRequest(ctx, "GET", cj.EndpointOrderDetail, query, nil)
	if err != nil {
		return nil, err
	}

	var data cj.OrderData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("解析订单详情失败: %w", err)
	}
	return &data, nil
}

// GetTracking 查询物流轨迹
func (s *cjClient) GetTracking(ctx context.Context, trackingNumber string) (*cj.TrackingData, error) {
	if trackingNumber == "" {
		return nil, &ValidationError{Message: "trackingNumber 不能为空"}
	}

	query := url.Values{}
	query.Set("trackNumber", trackingNumber)

	resp, err := s.doRequest(ctx, "GET", cj.EndpointTracking, query, nil)
	if err != nil {
		return nil, err
	}

	var data cj.TrackingData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("解析物流信息失败: %w", err)
	}
	return &data, nil
}

// ==================== 请求调度 ====================

// doRequest 带 token 管理和退避重试的请求调度
// 重试策略：
//   - token 类错误码：失效本地 token 后重试，最多额外 2 次
//   - 网关限流(1600200)：仅只读端点固定退避 5 秒后重试一次
//   - 其余非 200 错误码：直接返回类型化错误，不重试
func (s *cjClient) doRequest(ctx context.Context, method, endpoint string, query url.Values, body interface{}) (*cj.Response, error) {
	rateRetried := false

	for attempt := 0; ; attempt++ {
		token, err := s.tokens.GetAccessToken(ctx)
		if err != nil {
			return nil, err
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := s.execute(ctx, method, endpoint, query, body, token)
		if err != nil {
			return nil, err
		}

		if resp.Code == cj.CodeOK {
			return resp, nil
		}

		if resp.IsTokenError() {
			if attempt >= maxTokenRetries {
				return nil, &TokenExpiredError{Message: resp.Message}
			}
			log.Printf("[CJ] token 失效(code=%d)，重新获取后重试 (%d/%d)", resp.Code, attempt+1, maxTokenRetries)
			s.tokens.Invalidate()
			continue
		}

		if resp.IsRateLimited() {
			if cj.IsReadEndpoint(endpoint) && !rateRetried {
				log.Printf("[CJ] 触发网关限流，%s 后重试: %s", rateLimitBackoff, endpoint)
				rateRetried = true
				s.sleep(rateLimitBackoff)
				continue
			}
			return nil, &TransientApiError{Code: resp.Code, Message: resp.Message}
		}

		return nil, &TransientApiError{Code: resp.Code, Message: resp.Message}
	}
}

// execute 发起单次 HTTP 请求
func (s *cjClient) execute(ctx context.Context, method, endpoint string, query url.Values, body interface{}, token string) (*cj.Response, error) {
	var out cj.Response

	req := s.http.R().
		SetContext(ctx).
		SetHeader(cj.AccessTokenHeader, token).
		SetResult(&out)

	fullURL := strings.TrimRight(s.baseURL, "/") + endpoint
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}

	var (
		resp *resty.Response
		err  error
	)
	switch method {
	case "POST":
		resp, err = req.SetHeader("Content-Type", "application/json").SetBody(body).Post(fullURL)
	default:
		resp, err = req.Get(fullURL)
	}
	if err != nil {
		return nil, fmt.Errorf("请求 %s 失败: %w", endpoint, err)
	}
	if resp.IsError() {
		return nil, &TransientApiError{Code: resp.StatusCode(), Message: "HTTP " + resp.Status()}
	}
	return &out, nil
}

// searchCooldownRemaining 检查并占用搜索冷却窗口
// 允许时立即记录本次时间，返回 0；否则返回剩余等待秒数
func (s *cjClient) searchCooldownRemaining() int64 {
	s.searchMu.Lock()
	defer s.searchMu.Unlock()

	now := s.now()
	if !s.lastSearch.IsZero() {
		if elapsed := now.Sub(s.lastSearch); elapsed < searchCooldown {
			return int64((searchCooldown - elapsed).Seconds()) + 1
		}
	}
	s.lastSearch = now
	return 0
}

// searchCacheKey 搜索参数的缓存键，md5 避免键里出现任意用户输入
func searchCacheKey(p SearchParams) string {
	raw := fmt.Sprintf("%d|%d|%s|%s", p.Page, p.Limit, p.Keyword, strings.Join(p.Categories, ","))
	sum := md5.Sum([]byte(raw))
	return searchCachePrefix + hex.EncodeToString(sum[:])
}
