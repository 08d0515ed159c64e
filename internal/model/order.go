package model

import (
	"gorm.io/datatypes"
)

// 订单转发状态
const (
	OrderNotForwarded = 0
	OrderForwarded    = 1
)

// SalesOrder 本地销售订单
// 只建模转发到供应商所需的字段，完整订单流转由上游商城系统负责
type SalesOrder struct {
	BaseModel

	IncrementID string `gorm:"size:50;uniqueIndex;not null"` // 对外订单号
	Status      string `gorm:"size:30;index"`                // processing / complete / ...

	CustomerEmail string `gorm:"size:255"`

	// --- 收货地址 ---
	ShippingName    string `gorm:"size:255"`
	ShippingCountry string `gorm:"size:5"`
	ShippingRegion  string `gorm:"size:100"`
	ShippingCity    string `gorm:"size:100"`
	ShippingStreet  string `gorm:"size:255"`
	ShippingZip     string `gorm:"size:20"`
	ShippingPhone   string `gorm:"size:50"`

	// --- 供应商转发状态 ---
	DropshipProcessed int    `gorm:"default:0;index"` // 0 未转发 1 已转发
	CjOrderID         string `gorm:"size:64;index"`   // 供应商侧订单 ID

	Items   []SalesOrderItem `gorm:"foreignKey:OrderID"`
	History datatypes.JSON   // 状态备注历史 [{at, comment}]
}

// SalesOrderItem 订单行
type SalesOrderItem struct {
	BaseModel
	OrderID    int64   `gorm:"index;not null"`
	Sku        string  `gorm:"size:100;index"`
	QtyOrdered int     `gorm:"default:0"`
	Price      float64 `gorm:"default:0"`
}
