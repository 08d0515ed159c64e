package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"cj_dropship_v1/internal/model"
	"cj_dropship_v1/internal/repository"
	"cj_dropship_v1/pkg/cj"
)

// ==================== 导入参数 ====================

// 本地 SKU 前缀，父 SKU = CJ-<pid>，子 SKU = 父SKU-<vid>
const skuPrefix = "CJ-"

// 未指定分类时的兜底分类
const defaultCategoryID = 2

// ImportOptions 导入参数
type ImportOptions struct {
	Markup        float64           // 加价率，0.3 表示加价 30%
	StockQty      int               // 变体没报库存时的兜底库存
	CategoryIDs   []int64           // 落库分类，空则用默认分类
	SelectionMode AxisSelectionMode // 属性轴选择方式
	SelectedAxes  []string          // Explicit 模式下指定的轴
}

// ==================== ImportService ====================

// ImportService 供应商商品导入
// 导入操作总是返回结果信封，业务失败（冲突、供应商错误）不以 error 形式向上抛
type ImportService interface {
	// ImportSimple 导入为简单商品，忽略变体结构
	ImportSimple(ctx context.Context, pid string, opts ImportOptions) *ImportResult

	// ImportConfigurable 导入为可配置商品（父 + 子变体）
	// 检测不到属性轴时自动退化为简单商品导入
	ImportConfigurable(ctx context.Context, pid string, opts ImportOptions) *ImportResult

	// PreviewAxes 返回检测到的属性轴，供导入前人工选择
	PreviewAxes(ctx context.Context, pid string) ([]Axis, error)
}

type importService struct {
	products repository.ProductRepository
	attrs    repository.AttributeRepository
	cjc      CJClient
	axes     AttributeService
	images   ImageService
}

func NewImportService(
	products repository.ProductRepository,
	attrs repository.AttributeRepository,
	cjc CJClient,
	axes AttributeService,
	images ImageService,
) ImportService {
	return &importService{
		products: products,
		attrs:    attrs,
		cjc:      cjc,
		axes:     axes,
		images:   images,
	}
}

// ==================== 简单商品导入 ====================

// ImportSimple 导入简单商品
func (s *importService) ImportSimple(ctx context.Context, pid string, opts ImportOptions) *ImportResult {
	if pid == "" {
		return &ImportResult{Success: false, Code: ImportCodeFailed, Message: "pid 不能为空"}
	}

	sku := skuPrefix + pid
	if result := s.checkSkuFree(ctx, sku); result != nil {
		return result
	}

	detail, err := s.cjc.GetProductDetails(ctx, pid)
	if err != nil {
		return &ImportResult{Success: false, Code: ImportCodeFailed, Message: "获取商品详情失败: " + err.Error()}
	}

	variants := detail.Variants
	if len(variants) == 0 {
		if fetched, err := s.cjc.GetProductVariants(ctx, pid); err == nil {
			variants = fetched
		}
	}

	product := s.buildBaseProduct(detail, sku, opts)
	product.TypeID = model.TypeSimple
	product.Price = applyMarkup(detail.SellPrice, opts.Markup)

	// 库存取第一个变体，取不到用兜底库存
	stock := opts.StockQty
	if len(variants) > 0 {
		if reported, ok := variants[0].Stock(); ok {
			stock = reported
		}
	}
	product.StockQty = stock
	product.IsInStock = stock > 0

	if err := s.products.Create(ctx, product); err != nil {
		return &ImportResult{Success: false, Code: ImportCodeFailed, Message: "商品落库失败: " + err.Error()}
	}

	s.attachImages(ctx, product.ID, detail)

	log.Printf("[Import] 简单商品导入完成 sku=%s id=%d", sku, product.ID)
	return &ImportResult{
		Success:   true,
		Code:      ImportCodeOK,
		Message:   "导入成功",
		ProductID: product.ID,
		Sku:       sku,
	}
}

// ==================== 可配置商品导入 ====================

// ImportConfigurable 导入可配置商品
func (s *importService) ImportConfigurable(ctx context.Context, pid string, opts ImportOptions) *ImportResult {
	if pid == "" {
		return &ImportResult{Success: false, Code: ImportCodeFailed, Message: "pid 不能为空"}
	}

	parentSku := skuPrefix + pid
	if result := s.checkSkuFree(ctx, parentSku); result != nil {
		return result
	}

	detail, err := s.cjc.GetProductDetails(ctx, pid)
	if err != nil {
		return &ImportResult{Success: false, Code: ImportCodeFailed, Message: "获取商品详情失败: " + err.Error()}
	}

	variants := detail.Variants
	if len(variants) == 0 {
		variants, err = s.cjc.GetProductVariants(ctx, pid)
		if err != nil {
			return &ImportResult{Success: false, Code: ImportCodeFailed, Message: "获取变体失败: " + err.Error()}
		}
	}

	// 检测属性轴；没有可用轴时退化为简单商品导入
	detected := s.axes.DetectAxes(variants)
	if len(detected) == 0 {
		result := s.ImportSimple(ctx, pid, opts)
		if result.Success {
			result.Message = "未检测到可配置属性，已按简单商品导入"
		}
		return result
	}

	resolved, err := s.axes.ResolveSelected(ctx, detected, opts.SelectionMode, opts.SelectedAxes)
	if err != nil {
		return &ImportResult{Success: false, Code: ImportCodeFailed, Message: "属性解析失败: " + err.Error()}
	}
	if len(resolved) == 0 {
		result := s.ImportSimple(ctx, pid, opts)
		if result.Success {
			result.Message = "所选属性均不可用，已按简单商品导入"
		}
		return result
	}

	// 父商品价格取变体最低售价，没有变体价时退到基础售价
	parent := s.buildBaseProduct(detail, parentSku, opts)
	parent.TypeID = model.TypeConfigurable
	parent.ManageStock = false
	parent.Price = applyMarkup(minVariantPrice(variants, detail.SellPrice), opts.Markup)

	if err := s.products.Create(ctx, parent); err != nil {
		return &ImportResult{Success: false, Code: ImportCodeFailed, Message: "父商品落库失败: " + err.Error()}
	}
	s.attachImages(ctx, parent.ID, detail)

	// 属性选项的查找表：code -> (小写label -> 选项ID)
	optionIndex, err := s.buildOptionIndex(ctx, resolved)
	if err != nil {
		return &ImportResult{
			Success:   false,
			Code:      ImportCodeFailed,
			Message:   "读取属性选项失败: " + err.Error(),
			ProductID: parent.ID,
			Sku:       parentSku,
		}
	}

	childIDs := s.createChildren(ctx, parent, detail, variants, resolved, optionIndex, opts)
	if len(childIDs) == 0 {
		return &ImportResult{
			Success:   false,
			Code:      ImportCodePartial,
			Message:   "所有变体导入失败，父商品已创建但没有子商品",
			ProductID: parent.ID,
			Sku:       parentSku,
		}
	}

	attrIDs := make([]int64, 0, len(resolved))
	for _, axis := range resolved {
		attrIDs = append(attrIDs, axis.AttributeID)
	}

	// 关联失败时不回滚已建商品，如实上报部分失败
	if err := s.products.AssociateChildren(ctx, parent.ID, attrIDs, childIDs); err != nil {
		log.Printf("[Import] 关联失败 parent=%d: %v", parent.ID, err)
		return &ImportResult{
			Success:   false,
			Code:      ImportCodePartial,
			Message:   fmt.Sprintf("父子商品已创建但关联失败: %v", err),
			ProductID: parent.ID,
			Sku:       parentSku,
		}
	}

	log.Printf("[Import] 可配置商品导入完成 sku=%s id=%d children=%d", parentSku, parent.ID, len(childIDs))
	return &ImportResult{
		Success:   true,
		Code:      ImportCodeOK,
		Message:   fmt.Sprintf("导入成功，共 %d 个子商品", len(childIDs)),
		ProductID: parent.ID,
		Sku:       parentSku,
	}
}

// PreviewAxes 导入前预览可选属性轴
func (s *importService) PreviewAxes(ctx context.Context, pid string) ([]Axis, error) {
	if pid == "" {
		return nil, &ValidationError{Message: "pid 不能为空"}
	}

	variants, err := s.cjc.GetProductVariants(ctx, pid)
	if err != nil {
		return nil, err
	}
	return s.axes.DetectAxes(variants), nil
}

// ==================== 内部实现 ====================

// checkSkuFree SKU 占用检查，被占用时返回冲突结果
func (s *importService) checkSkuFree(ctx context.Context, sku string) *ImportResult {
	exists, err := s.products.ExistsBySku(ctx, sku)
	if err != nil {
		return &ImportResult{Success: false, Code: ImportCodeFailed, Message: "SKU 检查失败: " + err.Error()}
	}
	if exists {
		return &ImportResult{Success: false, Code: ImportCodeConflict, Message: fmt.Sprintf("SKU %s 已存在，商品可能已导入过", sku), Sku: sku}
	}
	return nil
}

// buildBaseProduct 从详情构建商品公共字段
func (s *importService) buildBaseProduct(detail *cj.ProductDetail, sku string, opts ImportOptions) *model.Product {
	categoryIDs := opts.CategoryIDs
	if len(categoryIDs) == 0 {
		categoryIDs = []int64{defaultCategoryID}
	}

	product := &model.Product{
		Sku:            sku,
		Name:           detail.ProductNameEn,
		Status:         model.StatusEnabled,
		Visibility:     model.VisibilityBoth,
		Cost:           detail.SellPrice,
		Description:    detail.Description,
		ManageStock:    true,
		DropshipPid:    detail.Pid,
		DropshipSource: model.DropshipSourceCJ,
		Weight:         detail.PackageWeight,
		CategoryIDs:    pq.Int64Array(categoryIDs),
	}

	if detail.PackageLength > 0 || detail.PackageWidth > 0 || detail.PackageHeight > 0 {
		dims, err := json.Marshal(model.PackageDimensions{
			Length: detail.PackageLength,
			Width:  detail.PackageWidth,
			Height: detail.PackageHeight,
		})
		if err == nil {
			product.Dimensions = datatypes.JSON(dims)
		}
	}
	return product
}

// createChildren 逐个创建子商品，单个变体失败只跳过不中断
func (s *importService) createChildren(
	ctx context.Context,
	parent *model.Product,
	detail *cj.ProductDetail,
	variants []cj.VariantRecord,
	resolved []ResolvedAxis,
	optionIndex map[string]map[string]int64,
	opts ImportOptions,
) []int64 {
	var childIDs []int64

	for _, variant := range variants {
		vid := variant.VariantID()
		if vid == "" {
			log.Printf("[Import] 变体缺少 vid，跳过 (parent=%s)", parent.Sku)
			continue
		}

		attrValues := s.matchAxisValues(variant, resolved, optionIndex)
		if len(attrValues) < len(resolved) {
			log.Printf("[Import] 变体 %s 有属性轴未匹配，按已匹配的 %d 个落库", vid, len(attrValues))
		}

		childSku := parent.Sku + "-" + vid
		price, hasPrice := variant.SellPrice()
		if !hasPrice {
			price = parent.Cost
		}
		stock, hasStock := variant.Stock()
		if !hasStock {
			stock = opts.StockQty
		}

		child := &model.Product{
			Sku:               childSku,
			Name:              parent.Name,
			TypeID:            model.TypeSimple,
			Status:            model.StatusEnabled,
			Visibility:        model.VisibilityNotVisible, // 子商品不单独展示
			Price:             applyMarkup(price, opts.Markup),
			Cost:              price,
			StockQty:          stock,
			IsInStock:         stock > 0,
			ManageStock:       true,
			DropshipPid:       parent.DropshipPid,
			DropshipSource:    model.DropshipSourceCJ,
			DropshipVariantID: vid,
			Weight:            parent.Weight,
			AttributeValues:   attrValues,
		}

		if err := s.products.Create(ctx, child); err != nil {
			log.Printf("[Import] 子商品 %s 落库失败，跳过: %v", childSku, err)
			continue
		}

		// 没有专属变体图时沿用父商品图集
		if imageURL := variant.Image(); imageURL != "" {
			s.images.AttachVariantImage(ctx, child.ID, imageURL)
		} else {
			s.attachImages(ctx, child.ID, detail)
		}

		childIDs = append(childIDs, child.ID)
	}
	return childIDs
}

// matchAxisValues 匹配变体在各属性轴上的取值
// 字段名和取值都按不区分大小写匹配；匹配不上的轴直接省略，
// 缺轴不拦住子商品创建
func (s *importService) matchAxisValues(
	variant cj.VariantRecord,
	resolved []ResolvedAxis,
	optionIndex map[string]map[string]int64,
) datatypes.JSONMap {
	values := datatypes.JSONMap{}

	for _, axis := range resolved {
		raw, ok := variant[axis.SourceField]
		if !ok {
			// 字段名大小写在不同变体间可能不一致
			for field, v := range variant {
				if strings.EqualFold(field, axis.SourceField) {
					raw, ok = v, true
					break
				}
			}
		}
		if !ok {
			continue
		}

		value := cj.CoerceString(raw)
		optionID, found := optionIndex[axis.Code][strings.ToLower(value)]
		if !found {
			continue
		}
		values[axis.Code] = optionID
	}
	return values
}

// buildOptionIndex 读取各属性的全部选项，按小写 label 建索引
func (s *importService) buildOptionIndex(ctx context.Context, resolved []ResolvedAxis) (map[string]map[string]int64, error) {
	index := make(map[string]map[string]int64, len(resolved))

	for _, axis := range resolved {
		options, err := s.attrs.ListOptions(ctx, axis.AttributeID)
		if err != nil {
			return nil, err
		}
		labels := make(map[string]int64, len(options))
		for _, opt := range options {
			labels[strings.ToLower(opt.Label)] = opt.ID
		}
		index[axis.Code] = labels
	}
	return index, nil
}

// attachImages 图片处理失败不影响导入结果
func (s *importService) attachImages(ctx context.Context, productID int64, detail *cj.ProductDetail) {
	if s.images == nil {
		return
	}
	if err := s.images.AttachProductImages(ctx, productID, detail); err != nil {
		log.Printf("[Import] 商品 %d 图片处理失败: %v", productID, err)
	}
}

// minVariantPrice 变体最低售价，取不到任何变体价时用 fallback
func minVariantPrice(variants []cj.VariantRecord, fallback float64) float64 {
	min := 0.0
	found := false
	for _, v := range variants {
		if price, ok := v.SellPrice(); ok && price > 0 {
			if !found || price < min {
				min = price
				found = true
			}
		}
	}
	if !found {
		return fallback
	}
	return min
}

// applyMarkup 按加价率计算售价，保留两位小数
func applyMarkup(cost, markup float64) float64 {
	price := cost * (1 + markup)
	return float64(int64(price*100+0.5)) / 100
}
