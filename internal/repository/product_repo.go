package repository

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"cj_dropship_v1/internal/model"
)

// ==================== 接口定义 ====================

// ProductRepository 商品仓储接口
type ProductRepository interface {
	// 基础 CRUD
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	GetBySku(ctx context.Context, sku string) (*model.Product, error)
	ExistsBySku(ctx context.Context, sku string) (bool, error)
	Update(ctx context.Context, product *model.Product) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	Delete(ctx context.Context, id int64) error

	// Dropshipping 查询
	ListBySkuPrefix(ctx context.Context, prefix string, offset, limit int) ([]model.Product, error)
	CountBySkuPrefix(ctx context.Context, prefix string) (int64, error)
	ListChildren(ctx context.Context, parentID int64) ([]model.Product, error)

	// 库存
	UpdateStock(ctx context.Context, sku string, qty int) error

	// 可配置商品结构
	AssociateChildren(ctx context.Context, parentID int64, attributeIDs []int64, childIDs []int64) error

	// 图片
	CreateImage(ctx context.Context, image *model.ProductImage) error

	// 事务
	WithTx(tx *gorm.DB) ProductRepository
	Transaction(ctx context.Context, fn func(txRepo ProductRepository) error) error
}

// ==================== 仓储实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Preload("Images").
		First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) GetBySku(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Preload("Images").
		Where("sku = ?", sku).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) ExistsBySku(ctx context.Context, sku string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("sku = ?", sku).
		Count(&count).Error
	return count > 0, err
}

func (r *productRepo) Update(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *productRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *productRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Product{}, id).Error
}

func (r *productRepo) ListBySkuPrefix(ctx context.Context, prefix string, offset, limit int) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("sku LIKE ?", prefix+"%").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&products).Error
	return products, err
}

func (r *productRepo) CountBySkuPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("sku LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}

func (r *productRepo) ListChildren(ctx context.Context, parentID int64) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) UpdateStock(ctx context.Context, sku string, qty int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("sku = ?", sku).
		Updates(map[string]interface{}{
			"stock_qty":   qty,
			"is_in_stock": qty > 0,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AssociateChildren 把子商品挂到可配置父商品下
// 父商品记录使用的属性 ID，子商品统一回写 parent_id，放在一个事务里
func (r *productRepo) AssociateChildren(ctx context.Context, parentID int64, attributeIDs []int64, childIDs []int64) error {
	if len(childIDs) == 0 {
		return errors.New("没有可关联的子商品")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make(pq.Int64Array, 0, len(attributeIDs))
		ids = append(ids, attributeIDs...)

		if err := tx.Model(&model.Product{}).
			Where("id = ?", parentID).
			Update("used_attribute_ids", ids).Error; err != nil {
			return err
		}

		return tx.Model(&model.Product{}).
			Where("id IN ?", childIDs).
			Update("parent_id", parentID).Error
	})
}

func (r *productRepo) CreateImage(ctx context.Context, image *model.ProductImage) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *productRepo) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepo{db: tx}
}

func (r *productRepo) Transaction(ctx context.Context, fn func(txRepo ProductRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
