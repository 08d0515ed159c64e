package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cj_dropship_v1/internal/middleware"
	"cj_dropship_v1/internal/service"
)

// 手动触发类操作的防抖窗口
const manualTriggerCooldown = 30 * time.Second

// OrderController 订单转发与物流查询
type OrderController struct {
	orderService     service.OrderService
	inventoryService service.InventoryService
	limiter          *middleware.CooldownLimiter
}

func NewOrderController(
	orderService service.OrderService,
	inventoryService service.InventoryService,
	limiter *middleware.CooldownLimiter,
) *OrderController {
	return &OrderController{
		orderService:     orderService,
		inventoryService: inventoryService,
		limiter:          limiter,
	}
}

// ==================== 订单转发 ====================

// ProcessPending 手动触发一轮订单转发
func (ctrl *OrderController) ProcessPending(c *gin.Context) {
	if r := ctrl.limiter.Check("order_process", manualTriggerCooldown); !r.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"message": middleware.RetryMessage(r),
		})
		return
	}

	report, err := ctrl.orderService.ProcessPending(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "success",
		"data":    report,
	})
}

// ForwardOne 手动转发单个订单
func (ctrl *OrderController) ForwardOne(c *gin.Context) {
	incrementID := c.Param("increment_id")

	err := ctrl.orderService.ForwardOrder(c.Request.Context(), incrementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"message": "订单不存在: " + incrementID,
			})
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "转发成功",
	})
}

// Tracking 查询订单物流轨迹
func (ctrl *OrderController) Tracking(c *gin.Context) {
	incrementID := c.Param("increment_id")

	data, err := ctrl.orderService.GetTracking(c.Request.Context(), incrementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"message": "订单不存在: " + incrementID,
			})
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "success",
		"data":    data,
	})
}

// ==================== 库存同步 ====================

// SyncInventory 手动触发一轮库存同步
func (ctrl *OrderController) SyncInventory(c *gin.Context) {
	if r := ctrl.limiter.Check("inventory_sync", manualTriggerCooldown); !r.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"message": middleware.RetryMessage(r),
		})
		return
	}

	report, err := ctrl.inventoryService.SyncAll(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "success",
		"data":    report,
	})
}
