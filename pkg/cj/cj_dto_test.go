package cj

import (
	"encoding/json"
	"testing"
)

func TestCoerceString(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"字符串原样", "Red", "Red"},
		{"整数形 float", float64(1), "1"},
		{"小数 float", 1.5, "1.5"},
		{"int", 42, "42"},
		{"bool", true, "true"},
		{"nil", nil, ""},
		{"json.Number", json.Number("10"), "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceString(tt.input); got != tt.want {
				t.Errorf("CoerceString(%v) = %q, 期望 %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestVariantRecord_字段读取(t *testing.T) {
	// 模拟 JSON 解析出来的变体：数字全是 float64
	raw := `{"vid":"V1","variantSku":"S-1","variantImage":"https://x/1.jpg","variantSellPrice":9.9,"variantStock":5,"color":"Red"}`
	var v VariantRecord
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("解析失败: %v", err)
	}

	if v.VariantID() != "V1" {
		t.Errorf("vid 不符: %s", v.VariantID())
	}
	if v.Sku() != "S-1" {
		t.Errorf("sku 不符: %s", v.Sku())
	}
	if v.Image() != "https://x/1.jpg" {
		t.Errorf("图片不符: %s", v.Image())
	}
	if price, ok := v.SellPrice(); !ok || price != 9.9 {
		t.Errorf("售价不符: %v %v", price, ok)
	}
	if stock, ok := v.Stock(); !ok || stock != 5 {
		t.Errorf("库存不符: %v %v", stock, ok)
	}

	// 缺失字段
	empty := VariantRecord{}
	if empty.VariantID() != "" {
		t.Error("缺失 vid 应为空串")
	}
	if _, ok := empty.SellPrice(); ok {
		t.Error("缺失售价应返回 ok=false")
	}
}

func TestResponse_错误码判定(t *testing.T) {
	for _, code := range []int{CodeUnauthorized, CodeTokenExpired, CodeTokenInvalid} {
		r := Response{Code: code}
		if !r.IsTokenError() {
			t.Errorf("code=%d 应判为 token 错误", code)
		}
	}

	r := Response{Code: CodeRateLimited}
	if r.IsTokenError() {
		t.Error("限流码不应判为 token 错误")
	}
	if !r.IsRateLimited() {
		t.Error("1600200 应判为限流")
	}

	ok := Response{Code: CodeOK}
	if ok.IsTokenError() || ok.IsRateLimited() {
		t.Error("成功响应不应判为错误")
	}
}

func TestIsReadEndpoint(t *testing.T) {
	reads := []string{EndpointProductList, EndpointProductQuery, EndpointVariantQuery, EndpointOrderDetail, EndpointTracking}
	for _, e := range reads {
		if !IsReadEndpoint(e) {
			t.Errorf("%s 应为只读端点", e)
		}
	}
	if IsReadEndpoint(EndpointOrderCreate) {
		t.Error("下单端点不是只读端点")
	}
	if IsReadEndpoint(EndpointAuth) {
		t.Error("认证端点不是只读端点")
	}
}
