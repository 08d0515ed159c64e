package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"cj_dropship_v1/internal/model"
)

// ==================== 接口定义 ====================

// OrderRepository 销售订单仓储接口
type OrderRepository interface {
	GetByID(ctx context.Context, id int64) (*model.SalesOrder, error)
	GetByIncrementID(ctx context.Context, incrementID string) (*model.SalesOrder, error)

	// ListUnprocessed 查询指定状态且尚未转发给供应商的订单
	ListUnprocessed(ctx context.Context, statuses []string, limit int) ([]model.SalesOrder, error)

	// MarkForwarded 记录供应商订单 ID 并标记已转发
	MarkForwarded(ctx context.Context, orderID int64, cjOrderID string) error

	// AppendHistory 往订单历史里追加一条备注
	AppendHistory(ctx context.Context, orderID int64, comment string) error
}

// historyEntry 历史备注条目
type historyEntry struct {
	At      string `json:"at"`
	Comment string `json:"comment"`
}

// ==================== 仓储实现 ====================

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*model.SalesOrder, error) {
	var order model.SalesOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) GetByIncrementID(ctx context.Context, incrementID string) (*model.SalesOrder, error) {
	var order model.SalesOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("increment_id = ?", incrementID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) ListUnprocessed(ctx context.Context, statuses []string, limit int) ([]model.SalesOrder, error) {
	var orders []model.SalesOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status IN ?", statuses).
		Where("dropship_processed = ?", model.OrderNotForwarded).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepo) MarkForwarded(ctx context.Context, orderID int64, cjOrderID string) error {
	return r.db.WithContext(ctx).
		Model(&model.SalesOrder{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"dropship_processed": model.OrderForwarded,
			"cj_order_id":        cjOrderID,
		}).Error
}

func (r *orderRepo) AppendHistory(ctx context.Context, orderID int64, comment string) error {
	var order model.SalesOrder
	if err := r.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		return err
	}

	var entries []historyEntry
	if len(order.History) > 0 {
		// 解析失败就当作空历史重建，备注不值得让订单流转失败
		_ = json.Unmarshal(order.History, &entries)
	}
	entries = append(entries, historyEntry{
		At:      time.Now().Format(time.RFC3339),
		Comment: comment,
	})

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Model(&model.SalesOrder{}).
		Where("id = ?", orderID).
		Update("history", data).Error
}
