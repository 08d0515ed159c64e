package service

import (
	"errors"
	"fmt"
)

// ==================== 错误类型定义 ====================

// ErrInvalidCredentials 后台登录凭据错误
var ErrInvalidCredentials = errors.New("用户名或密码错误")

// ThrottleError 认证节流错误
// 距上次认证尝试不足节流窗口时返回，不发起任何网络请求
type ThrottleError struct {
	WaitSeconds int64
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("认证请求过于频繁，请 %d 秒后重试", e.WaitSeconds)
}

// AuthError 认证失败错误（凭据错误、供应商拒绝等）
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "CJ 认证失败: " + e.Message
}

// TokenExpiredError Token 失效且重试耗尽
type TokenExpiredError struct {
	Message string
}

func (e *TokenExpiredError) Error() string {
	return "CJ Token 已失效: " + e.Message
}

// TransientApiError 供应商接口临时性错误（限流、网络等）
type TransientApiError struct {
	Code    int
	Message string
}

func (e *TransientApiError) Error() string {
	return fmt.Sprintf("CJ 接口临时错误(code=%d): %s", e.Code, e.Message)
}

// ValidationError 参数校验错误
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "参数错误: " + e.Message
}

// ==================== 导入结果 ====================

// 导入结果状态码，调用方按码判定结果而不是解析 message
const (
	ImportCodeOK       = "ok"              // 导入完成
	ImportCodeConflict = "sku_conflict"    // SKU 已被占用，未写入任何数据
	ImportCodePartial  = "partial_failure" // 部分商品已落库，但结构不完整
	ImportCodeFailed   = "failed"          // 未完成，除冲突外的业务失败
)

// ImportResult 导入结果信封，导入操作总是返回结果而非 panic
type ImportResult struct {
	Success   bool   `json:"success"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProductID int64  `json:"product_id,omitempty"`
	Sku       string `json:"sku,omitempty"`
}
