package model

import (
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// 商品类型
const (
	TypeSimple       = "simple"
	TypeConfigurable = "configurable"
)

// 可见性，只有父商品对顾客可见
const (
	VisibilityBoth       = "catalog_search"
	VisibilityNotVisible = "not_visible"
)

// 商品状态
const (
	StatusEnabled  = 1
	StatusDisabled = 2
)

// 来源标识
const DropshipSourceCJ = "CJ"

// Product 本地目录商品
// 既表示简单商品，也表示可配置父商品和它的子变体商品
// 子商品通过 ParentID 挂在父商品下
type Product struct {
	BaseModel

	Sku        string `gorm:"size:100;uniqueIndex;not null"`
	Name       string `gorm:"size:255"`
	TypeID     string `gorm:"size:20;index;default:simple"` // simple / configurable
	Status     int    `gorm:"default:1"`
	Visibility string `gorm:"size:30;default:catalog_search"`

	Price            float64 `gorm:"default:0"`
	Cost             float64 `gorm:"default:0"` // 供应商进价
	Description      string  `gorm:"type:text"`
	ShortDescription string  `gorm:"size:255"`

	// --- 库存 ---
	StockQty  int  `gorm:"default:0"`
	IsInStock bool `gorm:"default:false"`
	// 不带 default 标签：gorm 建档时会丢弃带默认值的零值字段，
	// 可配置父商品必须把 false 真实写进库里，由导入侧显式赋值
	ManageStock bool

	// --- 分类 (ID 列表，分类树本身不在本服务内建模) ---
	CategoryIDs pq.Int64Array `gorm:"type:bigint[]"`

	// --- Dropshipping 关联字段 ---
	DropshipPid       string `gorm:"size:64;index"` // 供应商商品 ID
	DropshipSource    string `gorm:"size:20;index"` // 固定 "CJ"
	DropshipVariantID string `gorm:"size:64"`       // 子商品对应的供应商变体 ID
	DropshipProcessed bool   `gorm:"default:false"` // 库存同步游标用

	// --- 包装 ---
	Weight     float64        `gorm:"default:0"`
	Dimensions datatypes.JSON // {length,width,height}

	// --- 可配置商品结构 ---
	ParentID         int64             `gorm:"index;default:0"` // 子商品指向父商品
	UsedAttributeIDs pq.Int64Array     `gorm:"type:bigint[]"`   // 父商品使用的配置属性
	AttributeValues  datatypes.JSONMap // 子商品的 属性code -> 选项ID

	Images []ProductImage `gorm:"foreignKey:ProductID"`
}

// ProductImage 商品图片，Rank 0 为主图
type ProductImage struct {
	BaseModel
	ProductID int64  `gorm:"index;not null"`
	URL       string `gorm:"size:512"` // 入库后的存储地址
	SourceURL string `gorm:"size:512"` // 供应商原始地址
	Rank      int    `gorm:"default:0"`
	Roles     pq.StringArray `gorm:"type:text[]"` // image / small_image / thumbnail
}

// PackageDimensions 包装尺寸
type PackageDimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
