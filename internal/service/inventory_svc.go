package service

import (
	"context"
	"log"
	"time"

	"cj_dropship_v1/internal/repository"
	"cj_dropship_v1/pkg/cj"
)

// ==================== 常量 ====================

const (
	// 每批同步的商品数
	inventoryBatchSize = 20

	// 批与批之间的停顿，给供应商接口留呼吸空间
	inventoryBatchPause = 2 * time.Second
)

// ==================== InventoryService ====================

// SyncReport 库存同步结果
type SyncReport struct {
	Total   int `json:"total"`   // 扫描的商品数
	Updated int `json:"updated"` // 成功更新数
	Failed  int `json:"failed"`  // 失败数
	Skipped int `json:"skipped"` // 无对应变体等原因跳过数
}

// InventoryService 把 CJ 侧库存同步到本地商品
type InventoryService interface {
	// SyncAll 全量同步所有 CJ 来源商品的库存
	// 按批扫描，批间停顿，单个商品失败不中断整轮同步
	SyncAll(ctx context.Context) (*SyncReport, error)
}

type inventoryService struct {
	products repository.ProductRepository
	cjc      CJClient

	sleep func(time.Duration) // 可注入，测试时跳过真实等待
}

func NewInventoryService(products repository.ProductRepository, cjc CJClient) InventoryService {
	return &inventoryService{
		products: products,
		cjc:      cjc,
		sleep:    time.Sleep,
	}
}

// SyncAll 全量库存同步
func (s *inventoryService) SyncAll(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}

	// 同一个 pid 的变体列表整轮只拉一次
	variantCache := make(map[string][]cj.VariantRecord)

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		batch, err := s.products.ListBySkuPrefix(ctx, skuPrefix, offset, inventoryBatchSize)
		if err != nil {
			return report, err
		}
		if len(batch) == 0 {
			break
		}

		for _, product := range batch {
			report.Total++

			// 父商品不管理实际库存
			if !product.ManageStock || product.DropshipPid == "" {
				report.Skipped++
				continue
			}

			variants, ok := variantCache[product.DropshipPid]
			if !ok {
				variants, err = s.cjc.GetProductVariants(ctx, product.DropshipPid)
				if err != nil {
					log.Printf("[Inventory] 拉取变体失败 pid=%s: %v", product.DropshipPid, err)
					report.Failed++
					continue
				}
				variantCache[product.DropshipPid] = variants
			}

			stock, found := matchStock(variants, product.DropshipVariantID)
			if !found {
				report.Skipped++
				continue
			}

			if err := s.products.UpdateStock(ctx, product.Sku, stock); err != nil {
				log.Printf("[Inventory] 更新库存失败 sku=%s: %v", product.Sku, err)
				report.Failed++
				continue
			}
			report.Updated++
		}

		if len(batch) < inventoryBatchSize {
			break
		}
		offset += inventoryBatchSize
		s.sleep(inventoryBatchPause)
	}

	log.Printf("[Inventory] 同步完成 total=%d updated=%d failed=%d skipped=%d",
		report.Total, report.Updated, report.Failed, report.Skipped)
	return report, nil
}

// matchStock 在变体列表里找商品对应的库存
// 子商品按 vid 精确匹配，简单商品取第一个变体
func matchStock(variants []cj.VariantRecord, variantID string) (int, bool) {
	if len(variants) == 0 {
		return 0, false
	}

	if variantID == "" {
		return variants[0].Stock()
	}

	for _, v := range variants {
		if v.VariantID() == variantID {
			return v.Stock()
		}
	}
	return 0, false
}
