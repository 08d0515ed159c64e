package utils

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// 供应商图床偶尔很慢，给足超时
var imageClient = resty.New().
	SetTimeout(30 * time.Second).
	SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
	SetHeader("User-Agent", "CJ-Dropship-Go/1.0")

// DownloadImage 下载网络图片并返回字节切片
func DownloadImage(imageURL string) ([]byte, error) {
	if _, err := url.ParseRequestURI(imageURL); err != nil {
		return nil, fmt.Errorf("无效的图片 URL: %v", err)
	}

	resp, err := imageClient.R().Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("http get failed: %v", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode())
	}

	data := resp.Body()
	if len(data) == 0 {
		return nil, fmt.Errorf("图片内容为空: %s", imageURL)
	}

	return data, nil
}
