package cj

import (
	"encoding/json"
	"strconv"
)

// ==================== 响应信封 ====================

// CJ 网关业务码
const (
	CodeOK               = 200     // 成功
	CodeUnauthorized     = 401     // 未授权
	CodeRateLimited      = 1600200 // 触发接口限流
	CodeTokenExpired     = 1600300 // access token 过期
	CodeTokenInvalid     = 1600400 // access token 无效
)

// Response CJ API 统一响应信封
// data 留作 RawMessage，由各业务方法二次解析
type Response struct {
	Code      int             `json:"code"`
	Result    bool            `json:"result"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"requestId"`
}

// IsTokenError 判断是否为 token 过期/无效类错误码
func (r *Response) IsTokenError() bool {
	switch r.Code {
	case CodeUnauthorized, CodeTokenExpired, CodeTokenInvalid:
		return true
	}
	return false
}

// IsRateLimited 判断是否触发了网关限流
func (r *Response) IsRateLimited() bool {
	return r.Code == CodeRateLimited
}

// ==================== 认证 ====================

// AuthRequest 获取 access token 的请求体
type AuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest 刷新 access token 的请求体
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthData 认证响应中的 token 数据
type AuthData struct {
	AccessToken           string `json:"accessToken"`
	AccessTokenExpiryDate string `json:"accessTokenExpiryDate"`
	RefreshToken          string `json:"refreshToken"`
	RefreshTokenExpiry    string `json:"refreshTokenExpiryDate"`
}

// ==================== 商品 ====================

// ProductListData 商品搜索结果
type ProductListData struct {
	PageNum  int             `json:"pageNum"`
	PageSize int             `json:"pageSize"`
	Total    int             `json:"total"`
	List     []ProductDigest `json:"list"`
}

// ProductDigest 搜索列表中的商品摘要
type ProductDigest struct {
	Pid          string  `json:"pid"`
	ProductName  string  `json:"productNameEn"`
	ProductSku   string  `json:"productSku"`
	ProductImage string  `json:"productImage"`
	SellPrice    float64 `json:"sellPrice"`
	CategoryName string  `json:"categoryName"`
}

// ProductDetail 商品详情
// productImage 在 CJ 侧可能是单个 URL、JSON 数组字符串或纯数组，
// 统一收在 RawMessage 里由图片管线解析
type ProductDetail struct {
	Pid           string          `json:"pid"`
	ProductNameEn string          `json:"productNameEn"`
	Description   string          `json:"description"`
	SellPrice     float64         `json:"sellPrice"`
	ProductImage  json.RawMessage `json:"productImage"`
	ProductImages json.RawMessage `json:"productImages"`
	PackageWeight float64         `json:"packWeight"`
	PackageLength float64         `json:"packLength"`
	PackageWidth  float64         `json:"packWidth"`
	PackageHeight float64         `json:"packHeight"`
	CategoryName  string          `json:"categoryName"`
	Variants      []VariantRecord `json:"variants,omitempty"`
}

// ==================== 变体 ====================

// 变体记录中的保留字段，不参与可配置属性轴检测
const (
	FieldVariantID        = "vid"
	FieldVariantSku       = "variantSku"
	FieldVariantImage     = "variantImage"
	FieldVariantSellPrice = "variantSellPrice"
	FieldVariantStock     = "variantStock"
)

// VariantRecord 供应商变体记录
// 除保留字段外的键都是任意的属性轴字段（颜色、尺码等），
// 值可能是字符串也可能是数字，比较前必须先统一转成字符串
type VariantRecord map[string]interface{}

// VariantID 变体唯一 ID
func (v VariantRecord) VariantID() string {
	return CoerceString(v[FieldVariantID])
}

// Sku 变体 SKU
func (v VariantRecord) Sku() string {
	return CoerceString(v[FieldVariantSku])
}

// Image 变体图片 URL，可能为空
func (v VariantRecord) Image() string {
	return CoerceString(v[FieldVariantImage])
}

// SellPrice 变体售价，缺失时返回 (0, false)
func (v VariantRecord) SellPrice() (float64, bool) {
	return coerceFloat(v[FieldVariantSellPrice])
}

// Stock 变体库存，缺失时返回 (0, false)
func (v VariantRecord) Stock() (int, bool) {
	f, ok := coerceFloat(v[FieldVariantStock])
	if !ok {
		return 0, false
	}
	return int(f), true
}

// CoerceString 把任意标量统一转成字符串形式
// 数字值先转字符串再参与集合比较，避免 float/int 键撞车
func CoerceString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// JSON 数字默认解析成 float64，整数去掉小数尾巴
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func coerceFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ==================== 订单 ====================

// OrderProduct 订单中的供应商商品行
type OrderProduct struct {
	Pid       string `json:"pid"`
	VariantID string `json:"vid,omitempty"`
	Quantity  int    `json:"quantity"`
}

// OrderRequest 创建订单的请求体
type OrderRequest struct {
	OrderNumber          string         `json:"orderNumber"`
	ShippingCountryCode  string         `json:"shippingCountryCode"`
	ShippingProvince     string         `json:"shippingProvince"`
	ShippingCity         string         `json:"shippingCity"`
	ShippingAddress      string         `json:"shippingAddress"`
	ShippingZip          string         `json:"shippingZip"`
	ShippingCustomerName string         `json:"shippingCustomerName"`
	ShippingPhone        string         `json:"shippingPhone"`
	CustomerEmail        string         `json:"customerEmail"`
	LogisticName         string         `json:"logisticName"`
	Products             []OrderProduct `json:"products"`
}

// OrderData 订单创建/查询响应
type OrderData struct {
	OrderID     string  `json:"orderId"`
	OrderNumber string  `json:"orderNumber"`
	OrderStatus string  `json:"orderStatus"`
	OrderAmount float64 `json:"orderAmount"`
}

// TrackingEvent 物流轨迹节点
type TrackingEvent struct {
	Date    string `json:"date"`
	Status  string `json:"status"`
	Details string `json:"details"`
}

// TrackingData 物流查询响应
type TrackingData struct {
	TrackingNumber string          `json:"trackingNumber"`
	LogisticName   string          `json:"logisticName"`
	DeliveryStatus string          `json:"deliveryStatus"`
	Events         []TrackingEvent `json:"trackInfo"`
}
