package cj

// CJ API 端点
const (
	EndpointAuth         = "/authentication/getAccessToken"
	EndpointRefreshToken = "/authentication/refreshAccessToken"
	EndpointProductList  = "/product/list"
	EndpointProductQuery = "/product/query"
	EndpointVariantQuery = "/product/variant/query"
	EndpointOrderCreate  = "/shopping/order/create"
	EndpointOrderDetail  = "/shopping/order/detail"
	EndpointTracking     = "/logistics/tracking"
)

// 鉴权头名称，CJ 不走标准 Authorization
const AccessTokenHeader = "CJ-Access-Token"

// IsReadEndpoint 只读端点允许限流后自动退避重试，写端点不允许
func IsReadEndpoint(endpoint string) bool {
	switch endpoint {
	case EndpointProductList, EndpointProductQuery, EndpointVariantQuery,
		EndpointOrderDetail, EndpointTracking:
		return true
	}
	return false
}
