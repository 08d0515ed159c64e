package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"cj_dropship_v1/internal/controller"
	"cj_dropship_v1/internal/middleware"
	"cj_dropship_v1/internal/model"
	"cj_dropship_v1/internal/repository"
	"cj_dropship_v1/internal/router"
	"cj_dropship_v1/internal/service"
	"cj_dropship_v1/internal/task"
	"cj_dropship_v1/pkg/cache"
	"cj_dropship_v1/pkg/database"
)

func main() {
	// 1. 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 2. JWT 密钥
	if secret := getEnv("JWT_SECRET", ""); secret != "" {
		cfg := middleware.DefaultJWTConfig()
		cfg.SecretKey = secret
		middleware.SetJWTConfig(cfg)
	}

	// 3. 初始化数据库
	db := initDatabase()

	// 4. 初始化依赖
	deps := initDependencies(db)

	// 5. 启动定时任务
	tasks := initTasks(deps)

	// 6. 初始化路由
	gin.SetMode(getEnv("GIN_MODE", gin.ReleaseMode))
	r := gin.Default()
	router.InitRoutes(r, deps.Controllers.Auth, deps.Controllers.Import, deps.Controllers.Order)

	// 7. 启动服务
	startServer(r, tasks)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Controllers *Controllers
}

// Repositories 仓库集合
type Repositories struct {
	Product   repository.ProductRepository
	Attribute repository.AttributeRepository
	Order     repository.OrderRepository
	User      repository.UserRepository
}

// Services 服务集合
type Services struct {
	Token     service.TokenService
	CJClient  service.CJClient
	Attribute service.AttributeService
	Image     service.ImageService
	Import    service.ImportService
	Inventory service.InventoryService
	Order     service.OrderService
	User      service.UserService
}

// Controllers 控制器集合
type Controllers struct {
	Auth   *controller.AuthController
	Import *controller.ImportController
	Order  *controller.OrderController
}

// Tasks 定时任务集合
type Tasks struct {
	Inventory *task.InventoryTask
	Order     *task.OrderTask
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase() *gorm.DB {
	dsn := getEnv("DATABASE_DSN",
		"host=localhost user=postgres password=postgres dbname=cj_dropship port=5432 sslmode=disable")

	return database.InitDB(dsn, getEnv("DB_DEBUG", "") == "true",
		// Catalog
		&model.Product{}, &model.ProductImage{},
		&model.CatalogAttribute{}, &model.AttributeOption{},
		// Sales
		&model.SalesOrder{}, &model.SalesOrderItem{},
		// Manager
		&model.SysUser{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		Product:   repository.NewProductRepository(db),
		Attribute: repository.NewAttributeRepository(db),
		Order:     repository.NewOrderRepository(db),
		User:      repository.NewUserRepository(db),
	}

	// -------- 缓存 --------
	store := initCacheStore()

	// -------- CJ 接入层 --------
	baseURL := getEnv("CJ_API_BASE_URL", "https://developers.cjdropshipping.com/api2.0/v1")
	tokenSvc := service.NewTokenService(store, service.TokenConfig{
		BaseURL:  baseURL,
		Email:    getEnv("CJ_API_EMAIL", ""),
		Password: getEnv("CJ_API_PASSWORD", ""),
	})
	cjClient := service.NewCJClient(tokenSvc, store, baseURL)

	// -------- 业务服务 --------
	attrSvc := service.NewAttributeService(repos.Attribute)
	imageSvc := initImageService(repos.Product)

	services := &Services{
		Token:     tokenSvc,
		CJClient:  cjClient,
		Attribute: attrSvc,
		Image:     imageSvc,
		Import:    service.NewImportService(repos.Product, repos.Attribute, cjClient, attrSvc, imageSvc),
		Inventory: service.NewInventoryService(repos.Product, cjClient),
		Order:     service.NewOrderService(repos.Order, repos.Product, cjClient),
		User:      service.NewUserService(repos.User),
	}

	// 初始管理员
	if err := services.User.EnsureAdmin(context.Background(),
		getEnv("ADMIN_USERNAME", "admin"),
		getEnv("ADMIN_PASSWORD", "admin123"),
	); err != nil {
		log.Printf("警告: 初始管理员创建失败: %v", err)
	}

	// -------- Controller 层 --------
	markup := getEnvFloat("CJ_DEFAULT_MARKUP", 0.3)
	stockQty := getEnvInt("CJ_DEFAULT_STOCK", 100)
	limiter := middleware.NewCooldownLimiter()
	controllers := &Controllers{
		Auth:   controller.NewAuthController(services.User),
		Import: controller.NewImportController(services.Import, services.CJClient, services.Token, markup, stockQty),
		Order:  controller.NewOrderController(services.Order, services.Inventory, limiter),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		Controllers: controllers,
	}
}

// initCacheStore 初始化缓存，配置了 Redis 则用 Redis，否则用进程内缓存
func initCacheStore() cache.Store {
	addr := getEnv("REDIS_ADDR", "")
	if addr == "" {
		log.Println("未配置 REDIS_ADDR，使用进程内缓存")
		return cache.NewMemoryStore()
	}

	store, err := cache.NewRedisStore(addr, getEnv("REDIS_PASSWORD", ""), "cj_dropship")
	if err != nil {
		log.Fatalf("Redis 连接失败: %v", err)
	}
	return store
}

// initImageService 初始化图片服务
func initImageService(products repository.ProductRepository) service.ImageService {
	storage, err := service.NewStorageProvider(&service.StorageConfig{
		Provider:  getEnv("STORAGE_PROVIDER", "local"),
		Bucket:    getEnv("AWS_BUCKET", ""),
		Region:    getEnv("AWS_REGION", ""),
		AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		CDNDomain: getEnv("AWS_CDN_DOMAIN", ""),
		BasePath:  getEnv("STORAGE_BASE_PATH", "cj-images"),
		BaseURL:   getEnv("STORAGE_BASE_URL", ""),
	})
	if err != nil {
		log.Fatalf("存储服务初始化失败: %v", err)
	}
	return service.NewImageService(products, storage)
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(deps *Dependencies) *Tasks {
	tasks := &Tasks{
		Inventory: task.NewInventoryTask(deps.Services.Inventory, getEnv("INVENTORY_CRON", "")),
		Order:     task.NewOrderTask(deps.Services.Order, getEnv("ORDER_CRON", "")),
	}
	tasks.Inventory.Start()
	tasks.Order.Start()

	log.Println("定时任务已启动")
	return tasks
}

// ==================== 服务启动 ====================

// startServer 启动服务并处理优雅退出
func startServer(r *gin.Engine, tasks *Tasks) {
	port := getEnv("SERVER_PORT", "8080")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("服务启动，监听 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("收到退出信号，正在关闭...")
	tasks.Inventory.Stop()
	tasks.Order.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}
	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
