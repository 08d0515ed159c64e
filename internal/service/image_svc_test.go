package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cj_dropship_v1/internal/repository"
	"cj_dropship_v1/pkg/cj"
)

// stubStorage 不落盘，原样返回伪地址
type stubStorage struct{}

func (stubStorage) Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error) {
	return "stored://" + filename, nil
}

func TestImageService_首图搬运失败时角色顺延(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "bad.jpg") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	db := setupImportTestDB(t)
	products := repository.NewProductRepository(db)
	svc := NewImageService(products, stubStorage{})

	detail := &cj.ProductDetail{
		ProductImages: json.RawMessage(fmt.Sprintf(`["%s/bad.jpg","%s/good.jpg"]`, srv.URL, srv.URL)),
	}

	if err := svc.AttachProductImages(context.Background(), 42, detail); err == nil {
		t.Error("首图搬运失败应上报错误")
	}

	var images []TestCatalogProductImage
	if err := db.Where("product_id = ?", 42).Find(&images).Error; err != nil {
		t.Fatalf("读取图片记录失败: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("应只落 1 条图片记录, 实际 %d", len(images))
	}
	// 第一张成功的图承担展示角色，即使它不是列表里的第一张
	if !strings.Contains(images[0].Roles, "image") {
		t.Errorf("成功的首图应带展示角色: %q", images[0].Roles)
	}
	if images[0].Rank != 1 {
		t.Errorf("图片序号应保留原始位置: %d", images[0].Rank)
	}
}

func TestParseImageURLs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"单个URL字符串", `"https://cdn.example.com/a.jpg"`, 1},
		{"纯数组", `["https://cdn.example.com/a.jpg","https://cdn.example.com/b.jpg"]`, 2},
		{"数组再编码成字符串", `"[\"https://cdn.example.com/a.jpg\",\"https://cdn.example.com/b.jpg\"]"`, 2},
		{"空串", `""`, 0},
		{"空数组", `[]`, 0},
		{"非URL内容被过滤", `["not-a-url","https://cdn.example.com/a.jpg"]`, 1},
		{"坏JSON", `{broken`, 0},
		{"null", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseImageURLs(json.RawMessage(tt.raw))
			if len(got) != tt.want {
				t.Errorf("ParseImageURLs(%s) = %v, 期望 %d 个", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseImageURLs_保持顺序(t *testing.T) {
	raw := json.RawMessage(`["https://x/1.jpg","https://x/2.jpg","https://x/3.jpg"]`)
	got := ParseImageURLs(raw)
	if len(got) != 3 || got[0] != "https://x/1.jpg" || got[2] != "https://x/3.jpg" {
		t.Errorf("顺序应保持: %v", got)
	}
}

func TestGenerateObjectKey(t *testing.T) {
	key := generateObjectKey("cj-images", "photo.png")
	if key == "" {
		t.Fatal("对象键不应为空")
	}
	if key[:10] != "cj-images/" {
		t.Errorf("应带基础路径前缀: %s", key)
	}
	if key[len(key)-4:] != ".png" {
		t.Errorf("应保留扩展名: %s", key)
	}

	// 无扩展名兜底 jpg
	key = generateObjectKey("", "noext")
	if key[len(key)-4:] != ".jpg" {
		t.Errorf("无扩展名应兜底 .jpg: %s", key)
	}
}
