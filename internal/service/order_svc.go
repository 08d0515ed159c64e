package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"cj_dropship_v1/internal/model"
	"cj_dropship_v1/internal/repository"
	"cj_dropship_v1/pkg/cj"
)

// ==================== 常量 ====================

// 默认物流方案
const defaultLogisticName = "CJPacket"

// 只转发处于这些状态的订单
var forwardableStatuses = []string{"processing", "pending_supplier"}

// 每轮最多处理的订单数
const orderBatchLimit = 50

// ==================== OrderService ====================

// ForwardReport 订单转发结果
type ForwardReport struct {
	Scanned   int      `json:"scanned"`
	Forwarded int      `json:"forwarded"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// OrderService 把本地订单里的 CJ 商品行转发到供应商下单
type OrderService interface {
	// ProcessPending 扫描未转发订单并逐单转发
	// 单个订单失败记录原因后继续，不阻塞整轮
	ProcessPending(ctx context.Context) (*ForwardReport, error)

	// ForwardOrder 转发单个订单
	ForwardOrder(ctx context.Context, incrementID string) error

	// GetTracking 按本地订单号查询供应商物流轨迹
	GetTracking(ctx context.Context, incrementID string) (*cj.TrackingData, error)
}

type orderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	cjc      CJClient
}

func NewOrderService(orders repository.OrderRepository, products repository.ProductRepository, cjc CJClient) OrderService {
	return &orderService{
		orders:   orders,
		products: products,
		cjc:      cjc,
	}
}

// ProcessPending 批量转发
func (s *orderService) ProcessPending(ctx context.Context) (*ForwardReport, error) {
	report := &ForwardReport{}

	pending, err := s.orders.ListUnprocessed(ctx, forwardableStatuses, orderBatchLimit)
	if err != nil {
		return report, err
	}

	for i := range pending {
		order := &pending[i]
		report.Scanned++

		if err := s.forward(ctx, order); err != nil {
			if _, skip := err.(*skipOrderError); skip {
				report.Skipped++
				continue
			}
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", order.IncrementID, err))
			log.Printf("[Order] 转发失败 %s: %v", order.IncrementID, err)
			continue
		}
		report.Forwarded++
	}

	log.Printf("[Order] 转发完成 scanned=%d forwarded=%d skipped=%d failed=%d",
		report.Scanned, report.Forwarded, report.Skipped, report.Failed)
	return report, nil
}

// ForwardOrder 手动转发单个订单
func (s *orderService) ForwardOrder(ctx context.Context, incrementID string) error {
	order, err := s.orders.GetByIncrementID(ctx, incrementID)
	if err != nil {
		return err
	}
	if order.DropshipProcessed == model.OrderForwarded {
		return &ValidationError{Message: "订单已转发过: " + incrementID}
	}

	if err := s.forward(ctx, order); err != nil {
		if _, skip := err.(*skipOrderError); skip {
			return &ValidationError{Message: "订单不含供应商商品: " + incrementID}
		}
		return err
	}
	return nil
}

// GetTracking 查询物流
func (s *orderService) GetTracking(ctx context.Context, incrementID string) (*cj.TrackingData, error) {
	order, err := s.orders.GetByIncrementID(ctx, incrementID)
	if err != nil {
		return nil, err
	}
	if order.CjOrderID == "" {
		return nil, &ValidationError{Message: "订单尚未转发到供应商: " + incrementID}
	}

	detail, err := s.cjc.GetOrderDetails(ctx, order.CjOrderID)
	if err != nil {
		return nil, err
	}
	// 未发货阶段还没有可查询的轨迹
	if detail.OrderStatus == "" || strings.EqualFold(detail.OrderStatus, "CREATED") {
		return &cj.TrackingData{DeliveryStatus: detail.OrderStatus}, nil
	}

	return s.cjc.GetTracking(ctx, order.CjOrderID)
}

// ==================== 内部实现 ====================

// skipOrderError 订单里没有任何 CJ 商品行
type skipOrderError struct{}

func (e *skipOrderError) Error() string { return "订单不含供应商商品" }

// forward 转发单个订单到供应商
func (s *orderService) forward(ctx context.Context, order *model.SalesOrder) error {
	products, err := s.collectSupplierLines(ctx, order)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return &skipOrderError{}
	}

	req := &cj.OrderRequest{
		OrderNumber:          order.IncrementID,
		ShippingCountryCode:  order.ShippingCountry,
		ShippingProvince:     order.ShippingRegion,
		ShippingCity:         order.ShippingCity,
		ShippingAddress:      order.ShippingStreet,
		ShippingZip:          order.ShippingZip,
		ShippingCustomerName: order.ShippingName,
		ShippingPhone:        order.ShippingPhone,
		CustomerEmail:        order.CustomerEmail,
		LogisticName:         defaultLogisticName,
		Products:             products,
	}

	data, err := s.cjc.CreateOrder(ctx, req)
	if err != nil {
		return err
	}

	if err := s.orders.MarkForwarded(ctx, order.ID, data.OrderID); err != nil {
		// CJ 侧订单已建，本地标记失败必须显式留痕
		log.Printf("[Order] 标记已转发失败 order=%s cjOrder=%s: %v", order.IncrementID, data.OrderID, err)
		return err
	}

	comment := fmt.Sprintf("已转发至 CJ，供应商订单号 %s", data.OrderID)
	if err := s.orders.AppendHistory(ctx, order.ID, comment); err != nil {
		log.Printf("[Order] 写入订单历史失败 %s: %v", order.IncrementID, err)
	}
	return nil
}

// collectSupplierLines 从订单行里挑出 CJ 商品并换算成供应商下单行
// SKU 约定：CJ-<pid> 或 CJ-<pid>-<vid>
func (s *orderService) collectSupplierLines(ctx context.Context, order *model.SalesOrder) ([]cj.OrderProduct, error) {
	var lines []cj.OrderProduct

	for _, item := range order.Items {
		if !strings.HasPrefix(item.Sku, skuPrefix) {
			continue
		}

		// 优先查本地商品拿准确的 pid/vid，查不到再从 SKU 拆
		pid, vid := "", ""
		if product, err := s.products.GetBySku(ctx, item.Sku); err == nil {
			pid, vid = product.DropshipPid, product.DropshipVariantID
		} else {
			pid, vid = splitSupplierSku(item.Sku)
		}
		if pid == "" {
			log.Printf("[Order] 无法解析供应商商品 sku=%s，跳过该行", item.Sku)
			continue
		}

		qty := item.QtyOrdered
		if qty <= 0 {
			qty = 1
		}
		lines = append(lines, cj.OrderProduct{
			Pid:       pid,
			VariantID: vid,
			Quantity:  qty,
		})
	}
	return lines, nil
}

// splitSupplierSku 从 SKU 拆出 pid 和可选的 vid
func splitSupplierSku(sku string) (pid, vid string) {
	rest := strings.TrimPrefix(sku, skuPrefix)
	if rest == "" {
		return "", ""
	}
	parts := strings.SplitN(rest, "-", 2)
	pid = parts[0]
	if len(parts) == 2 {
		vid = parts[1]
	}
	return pid, vid
}
