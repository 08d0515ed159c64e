package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cj_dropship_v1/internal/controller"
	"cj_dropship_v1/internal/middleware"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	authCtrl *controller.AuthController,
	importCtrl *controller.ImportController,
	orderCtrl *controller.OrderController) {

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// auth 鉴权组，登录接口不走 JWT
		auth := api.Group("/auth")
		{
			// POST /api/auth/login
			auth.POST("/login", authCtrl.Login)
		}

		// 其余接口全部要求登录
		guarded := api.Group("")
		guarded.Use(middleware.JWTAuth())
		{
			// cj 供应商商品组
			cj := guarded.Group("/cj")
			{
				// GET /api/cj/products?keyword=&page=&limit=
				cj.GET("/products", importCtrl.Search)
				cj.GET("/products/:pid", importCtrl.Detail)
				// 导入前预览可选属性轴
				cj.GET("/products/:pid/axes", importCtrl.PreviewAxes)
				// POST /api/cj/import
				cj.POST("/import", importCtrl.Import)

				cj.GET("/test-connection", importCtrl.TestConnection)
				cj.GET("/throttle", importCtrl.ThrottleStatus)
			}

			// orders 订单转发组
			orders := guarded.Group("/orders")
			{
				// POST /api/orders/process 手动触发一轮转发
				orders.POST("/process", orderCtrl.ProcessPending)
				orders.POST("/:increment_id/forward", orderCtrl.ForwardOne)
				orders.GET("/:increment_id/tracking", orderCtrl.Tracking)
			}

			// inventory 库存组
			inventory := guarded.Group("/inventory")
			{
				// POST /api/inventory/sync 手动触发一轮同步
				inventory.POST("/sync", orderCtrl.SyncInventory)
			}
		}
	}
}
