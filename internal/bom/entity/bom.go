package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BOM层级
const (
	BOMLevelProduct   = 0 // 产品锚点（型号）
	BOMLevelGroup     = 1 // 父级组
	BOMLevelComponent = 2 // 子件（绑定物料）
	BOMLevelAccessory = 3 // 配件
)

// BOM 物料清单节点（分层产品结构，带版本）
// 版本唯一性由(name, level, COALESCE(parent_id,''), version)上的唯一索引保证，
// 索引在main的迁移SQL里建（parent_id可空，gorm标签建不出COALESCE索引）
type BOM struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Name        string    `json:"name" gorm:"size:128;not null;index"`
	Version     string    `json:"version" gorm:"size:16;not null"`
	Level       int       `json:"level" gorm:"not null;index"`
	ParentID    *string   `json:"parent_id,omitempty" gorm:"size:32;index"`
	MaterialID  *string   `json:"material_id,omitempty" gorm:"size:32"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	Notes       string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 关联
	Parent       *BOM             `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Material     *Material        `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
	Inclusions   []BOMInclusion   `json:"inclusions,omitempty" gorm:"foreignKey:ParentBOMID"`
	ProductLinks []BOMProductLink `json:"product_links,omitempty" gorm:"foreignKey:BOMID"`
}

func (BOM) TableName() string {
	return "boms"
}

// BOMInclusion 包含边（父BOM → 子BOM，带用量）
// 不变式：Included.Level == Parent.Level + 1，写入时校验
type BOMInclusion struct {
	ID            string          `json:"id" gorm:"primaryKey;size:32"`
	ParentBOMID   string          `json:"parent_bom_id" gorm:"size:32;not null;index"`
	IncludedBOMID string          `json:"included_bom_id" gorm:"size:32;not null;index"`
	Quantity      decimal.Decimal `json:"quantity" gorm:"type:numeric(15,4);not null"`
	Notes         string          `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt     time.Time       `json:"created_at"`

	// 关联
	Included *BOM `json:"included,omitempty" gorm:"foreignKey:IncludedBOMID"`
}

func (BOMInclusion) TableName() string {
	return "bom_inclusions"
}

// BOMProductLink 一级BOM与可售产品的多对多关联
type BOMProductLink struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	BOMID     string    `json:"bom_id" gorm:"size:32;not null;index"`
	ProductID string    `json:"product_id" gorm:"size:32;not null;index"`
	CreatedAt time.Time `json:"created_at"`

	// 关联
	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (BOMProductLink) TableName() string {
	return "bom_product_links"
}
