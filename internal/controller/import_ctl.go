package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cj_dropship_v1/internal/service"
)

// ImportController 供应商商品搜索与导入
type ImportController struct {
	importService service.ImportService
	cjClient      service.CJClient
	tokenService  service.TokenService
	defaultMarkup float64
	defaultStock  int
}

func NewImportController(
	importService service.ImportService,
	cjClient service.CJClient,
	tokenService service.TokenService,
	defaultMarkup float64,
	defaultStock int,
) *ImportController {
	return &ImportController{
		importService: importService,
		cjClient:      cjClient,
		tokenService:  tokenService,
		defaultMarkup: defaultMarkup,
		defaultStock:  defaultStock,
	}
}

// ==================== 搜索 ====================

// Search 搜索供应商商品
func (ctrl *ImportController) Search(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	keyword := c.Query("keyword")

	var categories []string
	if raw := c.Query("categories"); raw != "" {
		categories = strings.Split(raw, ",")
	}

	data, err := ctrl.cjClient.SearchProducts(c.Request.Context(), service.SearchParams{
		Page:       page,
		Limit:      limit,
		Keyword:    keyword,
		Categories: categories,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"products":   data.List,
		"totalCount": data.Total,
		"page":       data.PageNum,
		"limit":      data.PageSize,
	})
}

// Detail 供应商商品详情
func (ctrl *ImportController) Detail(c *gin.Context) {
	pid := c.Param("pid")

	detail, err := ctrl.cjClient.GetProductDetails(c.Request.Context(), pid)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "success",
		"data":    detail,
	})
}

// PreviewAxes 导入前预览可选的属性轴
func (ctrl *ImportController) PreviewAxes(c *gin.Context) {
	pid := c.Param("pid")

	axes, err := ctrl.importService.PreviewAxes(c.Request.Context(), pid)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "success",
		"data":    axes,
	})
}

// ==================== 导入 ====================

type importReq struct {
	Pid          string   `json:"pid" binding:"required"`
	Type         string   `json:"type"`          // simple / configurable，默认 configurable
	Markup       *float64 `json:"markup"`        // 不传用系统默认加价率
	StockQty     *int     `json:"stock_qty"`     // 变体没报库存时的兜底库存，不传用系统默认
	CategoryIDs  []int64  `json:"category_ids"`
	SelectedAxes []string `json:"selected_axes"` // 传了则只用指定的属性轴
}

// Import 导入商品
func (ctrl *ImportController) Import(c *gin.Context) {
	var req importReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "参数错误: pid 不能为空",
		})
		return
	}

	markup := ctrl.defaultMarkup
	if req.Markup != nil {
		markup = *req.Markup
	}
	stockQty := ctrl.defaultStock
	if req.StockQty != nil {
		stockQty = *req.StockQty
	}

	opts := service.ImportOptions{
		Markup:      markup,
		StockQty:    stockQty,
		CategoryIDs: req.CategoryIDs,
	}
	if len(req.SelectedAxes) > 0 {
		opts.SelectionMode = service.AxisExplicit
		opts.SelectedAxes = req.SelectedAxes
	}

	var result *service.ImportResult
	if req.Type == "simple" {
		result = ctrl.importService.ImportSimple(c.Request.Context(), req.Pid, opts)
	} else {
		result = ctrl.importService.ImportConfigurable(c.Request.Context(), req.Pid, opts)
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{
		"success": result.Success,
		"message": result.Message,
		"data":    result,
	})
}

// ==================== 连接测试 ====================

// TestConnection 测试 CJ 凭据是否可用
// 丢弃本地缓存后强制重新认证，保证测的是凭据本身而不是旧 token
func (ctrl *ImportController) TestConnection(c *gin.Context) {
	ctrl.tokenService.Invalidate()
	_, err := ctrl.tokenService.Authenticate(c.Request.Context())
	if err != nil {
		var terr *service.ThrottleError
		if errors.As(err, &terr) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": terr.Error(),
				"data":    ctrl.tokenService.GetThrottleInfo(),
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"message": "连接失败: " + err.Error(),
			"data":    ctrl.tokenService.GetThrottleInfo(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "连接正常",
		"data":    ctrl.tokenService.GetThrottleInfo(),
	})
}

// ThrottleStatus 查询认证节流状态
func (ctrl *ImportController) ThrottleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "success",
		"data":    ctrl.tokenService.GetThrottleInfo(),
	})
}

// ==================== 错误翻译 ====================

// respondServiceError 把服务层的类型化错误翻成 HTTP 状态码
func respondServiceError(c *gin.Context, err error) {
	var (
		throttleErr  *service.ThrottleError
		authErr      *service.AuthError
		validErr     *service.ValidationError
		transientErr *service.TransientApiError
		tokenErr     *service.TokenExpiredError
	)

	switch {
	case errors.As(err, &throttleErr):
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": throttleErr.Error()})
	case errors.As(err, &validErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": validErr.Error()})
	case errors.As(err, &authErr):
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": authErr.Error()})
	case errors.As(err, &tokenErr):
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": tokenErr.Error()})
	case errors.As(err, &transientErr):
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": transientErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
	}
}
