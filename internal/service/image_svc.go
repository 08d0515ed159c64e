package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"cj_dropship_v1/internal/model"
	"cj_dropship_v1/internal/repository"
	"cj_dropship_v1/pkg/cj"
	"cj_dropship_v1/pkg/utils"
)

// ==================== 存储提供者 ====================

// StorageProvider 图片存储抽象
type StorageProvider interface {
	// Upload 上传文件，返回公开访问 URL
	Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error)
}

// StorageConfig 存储配置
type StorageConfig struct {
	Provider  string // "s3" | "local"
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	CDNDomain string // 可选 CDN 域名
	BasePath  string // 基础路径前缀
	BaseURL   string // local 模式下的访问地址
}

// NewStorageProvider 按配置创建存储提供者
func NewStorageProvider(cfg *StorageConfig) (StorageProvider, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3Storage(cfg)
	case "local", "":
		return NewLocalStorage(cfg)
	default:
		return nil, fmt.Errorf("不支持的存储提供者: %s", cfg.Provider)
	}
}

// ==================== S3 实现 ====================

type S3Storage struct {
	client    *s3.Client
	bucket    string
	region    string
	cdnDomain string
	basePath  string
}

func NewS3Storage(cfg *StorageConfig) (*S3Storage, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("加载AWS配置失败: %v", err)
	}

	return &S3Storage{
		client:    s3.NewFromConfig(awsCfg),
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		cdnDomain: cfg.CDNDomain,
		basePath:  cfg.BasePath,
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error) {
	key := generateObjectKey(s.basePath, filename)

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("上传S3失败: %v", err)
	}

	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

// ==================== 本地存储 (开发测试用) ====================

type LocalStorage struct {
	basePath string
	baseURL  string
}

func NewLocalStorage(cfg *StorageConfig) (*LocalStorage, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "./uploads"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8080/uploads"
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %v", err)
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  baseURL,
	}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error) {
	key := generateObjectKey("", filename)

	fullPath := filepath.Join(s.basePath, key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("写入本地文件失败: %v", err)
	}

	return strings.TrimRight(s.baseURL, "/") + "/" + key, nil
}

// generateObjectKey 生成 日期/uuid.ext 形式的对象键
func generateObjectKey(basePath, filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	name := uuid.New().String() + ext

	datePath := time.Now().Format("2006/01/02")
	if basePath != "" {
		return fmt.Sprintf("%s/%s/%s", basePath, datePath, name)
	}
	return fmt.Sprintf("%s/%s", datePath, name)
}

// ==================== ImageService ====================

// 商品图片最多处理的张数
const maxProductImages = 10

// ImageService 供应商图片搬运
// 下载供应商图片、上传到存储、写入图片记录；失败不影响商品导入
type ImageService interface {
	// AttachProductImages 解析详情中的图片字段并逐张搬运，第一张作为主图
	AttachProductImages(ctx context.Context, productID int64, detail *cj.ProductDetail) error

	// AttachVariantImage 搬运子商品的变体图
	AttachVariantImage(ctx context.Context, productID int64, sourceURL string)
}

type imageService struct {
	products repository.ProductRepository
	storage  StorageProvider
}

func NewImageService(products repository.ProductRepository, storage StorageProvider) ImageService {
	return &imageService{products: products, storage: storage}
}

// AttachProductImages 处理商品主图集
func (s *imageService) AttachProductImages(ctx context.Context, productID int64, detail *cj.ProductDetail) error {
	urls := ParseImageURLs(detail.ProductImages)
	if len(urls) == 0 {
		urls = ParseImageURLs(detail.ProductImage)
	}
	if len(urls) == 0 {
		return nil
	}
	if len(urls) > maxProductImages {
		urls = urls[:maxProductImages]
	}

	var firstErr error
	rolesAssigned := false
	for i, sourceURL := range urls {
		storedURL, err := s.transfer(ctx, sourceURL)
		if err != nil {
			log.Printf("[Image] 搬运失败 %s: %v", sourceURL, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		image := &model.ProductImage{
			ProductID: productID,
			URL:       storedURL,
			SourceURL: sourceURL,
			Rank:      i,
		}
		// 第一张成功的图承担全部展示角色
		if !rolesAssigned {
			image.Roles = pq.StringArray{"image", "small_image", "thumbnail"}
		}
		if err := s.products.CreateImage(ctx, image); err != nil {
			log.Printf("[Image] 图片记录写入失败: %v", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		rolesAssigned = true
	}
	return firstErr
}

// AttachVariantImage 处理变体图，失败只记日志
func (s *imageService) AttachVariantImage(ctx context.Context, productID int64, sourceURL string) {
	if sourceURL == "" {
		return
	}

	storedURL, err := s.transfer(ctx, sourceURL)
	if err != nil {
		log.Printf("[Image] 变体图搬运失败 %s: %v", sourceURL, err)
		return
	}

	image := &model.ProductImage{
		ProductID: productID,
		URL:       storedURL,
		SourceURL: sourceURL,
		Rank:      0,
		Roles:     pq.StringArray{"image", "small_image", "thumbnail"},
	}
	if err := s.products.CreateImage(ctx, image); err != nil {
		log.Printf("[Image] 变体图记录写入失败: %v", err)
	}
}

// transfer 下载并转存单张图片
func (s *imageService) transfer(ctx context.Context, sourceURL string) (string, error) {
	data, err := utils.DownloadImage(sourceURL)
	if err != nil {
		return "", err
	}
	return s.storage.Upload(ctx, data, filepath.Base(sourceURL), "")
}

// ==================== 图片字段解析 ====================

// ParseImageURLs 解析 CJ 的图片字段
// 同一个字段在不同商品上可能是：单个 URL 字符串、JSON 数组、
// 或者内容是 JSON 数组的字符串，三种形态都兼容
func ParseImageURLs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	// 纯数组
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return filterURLs(list)
	}

	// 字符串：可能是单个 URL，也可能是数组再编码一层
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return nil
	}
	if strings.HasPrefix(str, "[") {
		if err := json.Unmarshal([]byte(str), &list); err == nil {
			return filterURLs(list)
		}
		return nil
	}
	return filterURLs([]string{str})
}

func filterURLs(urls []string) []string {
	out := urls[:0]
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
