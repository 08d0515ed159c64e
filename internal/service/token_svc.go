package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"cj_dropship_v1/pkg/cache"
	"cj_dropship_v1/pkg/cj"
)

// ==================== 缓存键与时间常量 ====================

const (
	cacheKeyAccessToken  = "cj_dropshipping_access_token"
	cacheKeyRefreshToken = "cj_dropshipping_refresh_token"
	cacheKeyTokenExpiry  = "cj_dropshipping_token_expiry"
	cacheKeyLastAttempt  = "cj_dropshipping_last_attempt"
	cacheKeyAuthError    = "cj_dropshipping_auth_error"
)

const (
	// 认证节流窗口：CJ 限制认证端点 5 分钟一次
	authThrottleWindow = 300 * time.Second

	// 本地过期时间 = 签发方过期时间 - 安全边际，
	// 避免用临近过期的 token 发起业务请求
	tokenExpirySafetyMargin = 3600 * time.Second

	// 各缓存键的 TTL
	accessTokenTTL  = 86400 * time.Second
	refreshTokenTTL = 15552000 * time.Second // 180 天
	tokenExpiryTTL  = 86400 * time.Second
	lastAttemptTTL  = 3600 * time.Second
	authErrorTTL    = 3600 * time.Second
)

// ==================== TokenService ====================

// ThrottleInfo 认证节流状态
type ThrottleInfo struct {
	CanAuthenticate bool   `json:"can_authenticate"`
	WaitSeconds     int64  `json:"wait_seconds"`
	LastError       string `json:"last_error,omitempty"`
}

// TokenService 管理 CJ access token 的完整生命周期：
// 获取、缓存、刷新、节流和失效
type TokenService interface {
	// GetAccessToken 返回一个可用的 access token
	// 优先走缓存，其次刷新，最后受节流保护地重新认证
	GetAccessToken(ctx context.Context) (string, error)

	// Authenticate 强制发起一次认证（仍受节流窗口约束）
	Authenticate(ctx context.Context) (string, error)

	// GetThrottleInfo 查询当前节流状态，不产生任何副作用
	GetThrottleInfo() ThrottleInfo

	// Invalidate 清除本地缓存的 access token（保留 refresh token）
	Invalidate()
}

type tokenService struct {
	store    cache.Store
	http     *resty.Client
	baseURL  string
	email    string
	password string

	// 节流窗口的"检查-写入"必须在同一把锁内完成，
	// 否则并发调用会同时通过检查并重复打认证端点
	mu sync.Mutex

	now func() time.Time // 可注入时钟，便于测试
}

// TokenConfig CJ 认证配置
type TokenConfig struct {
	BaseURL  string
	Email    string
	Password string
}

func NewTokenService(store cache.Store, cfg TokenConfig) TokenService {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &tokenService{
		store:    store,
		http:     client,
		baseURL:  cfg.BaseURL,
		email:    cfg.Email,
		password: cfg.Password,
		now:      time.Now,
	}
}

// GetAccessToken 获取可用 token
func (s *tokenService) GetAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. 缓存中有未过期的 token 直接复用
	if token, ok := s.cachedValidToken(); ok {
		return token, nil
	}

	// 2. 有 refresh token 则优先刷新，刷新不占认证节流窗口
	if refreshToken, ok := s.store.Get(cacheKeyRefreshToken); ok && refreshToken != "" {
		token, err := s.refresh(ctx, refreshToken)
		if err == nil {
			return token, nil
		}
		log.Printf("[Token] 刷新失败，降级为重新认证: %v", err)
		// 刷新失败的 refresh token 作废
		s.store.Delete(cacheKeyRefreshToken)
	}

	// 3. 重新认证，受节流窗口保护
	return s.authenticateLocked(ctx)
}

// Authenticate 强制认证
func (s *tokenService) Authenticate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticateLocked(ctx)
}

// GetThrottleInfo 只读查询节流状态
func (s *tokenService) GetThrottleInfo() ThrottleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := ThrottleInfo{CanAuthenticate: true}

	if wait := s.throttleRemaining(); wait > 0 {
		info.CanAuthenticate = false
		info.WaitSeconds = wait
	}
	if lastErr, ok := s.store.Get(cacheKeyAuthError); ok {
		info.LastError = lastErr
	}
	return info
}

// Invalidate 清除 access token，下次请求会触发刷新或重新认证
func (s *tokenService) Invalidate() {
	s.store.Delete(cacheKeyAccessToken)
	s.store.Delete(cacheKeyTokenExpiry)
}

// ==================== 内部实现 ====================

// cachedValidToken 检查缓存 token 是否存在且未到本地过期时间
func (s *tokenService) cachedValidToken() (string, bool) {
	token, ok := s.store.Get(cacheKeyAccessToken)
	if !ok || token == "" {
		return "", false
	}

	expiryStr, ok := s.store.Get(cacheKeyTokenExpiry)
	if !ok {
		return "", false
	}
	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return "", false
	}

	if s.now().Unix() >= expiry {
		return "", false
	}
	return token, true
}

// throttleRemaining 计算距离下次允许认证还需等待的秒数
func (s *tokenService) throttleRemaining() int64 {
	lastStr, ok := s.store.Get(cacheKeyLastAttempt)
	if !ok {
		return 0
	}
	last, err := strconv.ParseInt(lastStr, 10, 64)
	if err != nil {
		return 0
	}

	elapsed := s.now().Unix() - last
	windowSec := int64(authThrottleWindow / time.Second)
	if elapsed < windowSec {
		return windowSec - elapsed
	}
	return 0
}

// authenticateLocked 发起认证请求，调用方必须持有 s.mu
func (s *tokenService) authenticateLocked(ctx context.Context) (string, error) {
	if wait := s.throttleRemaining(); wait > 0 {
		return "", &ThrottleError{WaitSeconds: wait}
	}

	// 先记录本次尝试再发请求：即使请求失败或超时，
	// 节流窗口也从本次尝试开始计算，防止失败后密集重试
	s.store.Set(cacheKeyLastAttempt, strconv.FormatInt(s.now().Unix(), 10), lastAttemptTTL)

	resp, err := s.postAuth(ctx, cj.EndpointAuth, cj.AuthRequest{
		Email:    s.email,
		Password: s.password,
	})
	if err != nil {
		s.store.Set(cacheKeyAuthError, err.Error(), authErrorTTL)
		return "", fmt.Errorf("认证请求失败: %w", err)
	}

	if resp.Code != cj.CodeOK {
		authErr := &AuthError{Message: resp.Message}
		s.store.Set(cacheKeyAuthError, authErr.Error(), authErrorTTL)
		return "", authErr
	}

	token, err := s.storeAuthData(resp)
	if err != nil {
		s.store.Set(cacheKeyAuthError, err.Error(), authErrorTTL)
		return "", err
	}

	s.store.Delete(cacheKeyAuthError)
	log.Printf("[Token] 认证成功，token 已缓存")
	return token, nil
}

// refresh 用 refresh token 换新 access token
func (s *tokenService) refresh(ctx context.Context, refreshToken string) (string, error) {
	resp, err := s.postAuth(ctx, cj.EndpointRefreshToken, cj.RefreshRequest{
		RefreshToken: refreshToken,
	})
	if err != nil {
		return "", fmt.Errorf("刷新请求失败: %w", err)
	}

	if resp.Code != cj.CodeOK {
		return "", &AuthError{Message: resp.Message}
	}

	token, err := s.storeAuthData(resp)
	if err != nil {
		return "", err
	}
	log.Printf("[Token] 刷新成功")
	return token, nil
}

// postAuth 调用认证类端点
func (s *tokenService) postAuth(ctx context.Context, endpoint string, payload interface{}) (*cj.Response, error) {
	var out cj.Response
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&out).
		Post(s.baseURL + endpoint)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode())
	}
	return &out, nil
}

// storeAuthData 解析认证响应并写入缓存
func (s *tokenService) storeAuthData(resp *cj.Response) (string, error) {
	var data cj.AuthData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("解析认证响应失败: %w", err)
	}
	if data.AccessToken == "" {
		return "", &AuthError{Message: "响应缺少 accessToken"}
	}

	expiry := s.parseExpiry(data.AccessTokenExpiryDate)

	s.store.Set(cacheKeyAccessToken, data.AccessToken, accessTokenTTL)
	s.store.Set(cacheKeyTokenExpiry, strconv.FormatInt(expiry, 10), tokenExpiryTTL)
	if data.RefreshToken != "" {
		s.store.Set(cacheKeyRefreshToken, data.RefreshToken, refreshTokenTTL)
	}
	return data.AccessToken, nil
}

// parseExpiry 解析签发方过期时间并扣掉安全边际
// 解析失败时退化为 24 小时减安全边际
func (s *tokenService) parseExpiry(raw string) int64 {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05-07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Add(-tokenExpirySafetyMargin).Unix()
		}
	}
	log.Printf("[Token] 无法解析过期时间 %q，使用默认有效期", raw)
	return s.now().Add(accessTokenTTL - tokenExpirySafetyMargin).Unix()
}
