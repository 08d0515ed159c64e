package model

// CatalogAttribute 目录属性
// 由变体轴检测懒创建：同 code 的属性只建一次，选项只追加不删改
type CatalogAttribute struct {
	BaseModel
	Code         string `gorm:"size:30;uniqueIndex;not null"`
	Label        string `gorm:"size:100"`
	InputType    string `gorm:"size:20;default:select"`
	IsGlobal     bool   `gorm:"default:true"`
	Configurable bool   `gorm:"default:true"` // 可参与可配置商品
	UserDefined  bool   `gorm:"default:true"`
	GroupName    string `gorm:"size:50;default:General"` // 默认属性分组
	SortOrder    int    `gorm:"default:90"`

	Options []AttributeOption `gorm:"foreignKey:AttributeID"`
}

// AttributeOption 属性选项
// (attribute_id, label) 唯一，保证选项创建幂等
type AttributeOption struct {
	BaseModel
	AttributeID int64  `gorm:"uniqueIndex:idx_attr_label;not null"`
	Label       string `gorm:"size:255;uniqueIndex:idx_attr_label;not null"`
	Position    int    `gorm:"default:0"`
}
