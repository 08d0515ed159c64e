package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cj_dropship_v1/internal/model"
)

// ==================== 接口定义 ====================

// AttributeRepository 目录属性仓储接口
type AttributeRepository interface {
	GetByCode(ctx context.Context, code string) (*model.CatalogAttribute, error)
	GetByID(ctx context.Context, id int64) (*model.CatalogAttribute, error)
	Create(ctx context.Context, attr *model.CatalogAttribute) error

	// AddOptions 追加选项，已存在的 label 静默跳过（幂等）
	AddOptions(ctx context.Context, attributeID int64, labels []string) error
	ListOptions(ctx context.Context, attributeID int64) ([]model.AttributeOption, error)
}

// ==================== 仓储实现 ====================

type attributeRepo struct {
	db *gorm.DB
}

// NewAttributeRepository 创建属性仓储
func NewAttributeRepository(db *gorm.DB) AttributeRepository {
	return &attributeRepo{db: db}
}

func (r *attributeRepo) GetByCode(ctx context.Context, code string) (*model.CatalogAttribute, error) {
	var attr model.CatalogAttribute
	err := r.db.WithContext(ctx).
		Preload("Options").
		Where("code = ?", code).
		First(&attr).Error
	if err != nil {
		return nil, err
	}
	return &attr, nil
}

func (r *attributeRepo) GetByID(ctx context.Context, id int64) (*model.CatalogAttribute, error) {
	var attr model.CatalogAttribute
	err := r.db.WithContext(ctx).
		Preload("Options").
		First(&attr, id).Error
	if err != nil {
		return nil, err
	}
	return &attr, nil
}

func (r *attributeRepo) Create(ctx context.Context, attr *model.CatalogAttribute) error {
	return r.db.WithContext(ctx).Create(attr).Error
}

func (r *attributeRepo) AddOptions(ctx context.Context, attributeID int64, labels []string) error {
	if len(labels) == 0 {
		return nil
	}

	options := make([]model.AttributeOption, 0, len(labels))
	for i, label := range labels {
		options = append(options, model.AttributeOption{
			AttributeID: attributeID,
			Label:       label,
			Position:    i,
		})
	}

	// (attribute_id, label) 冲突时不动已有行，保证选项只追加
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attribute_id"}, {Name: "label"}},
			DoNothing: true,
		}).
		Create(&options).Error
}

func (r *attributeRepo) ListOptions(ctx context.Context, attributeID int64) ([]model.AttributeOption, error) {
	var options []model.AttributeOption
	err := r.db.WithContext(ctx).
		Where("attribute_id = ?", attributeID).
		Order("position ASC, id ASC").
		Find(&options).Error
	return options, err
}
