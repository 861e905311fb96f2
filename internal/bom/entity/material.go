package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Material 物料（对本引擎只读，由仓储模块维护）
type Material struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	Code         string          `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Name         string          `json:"name" gorm:"size:128;not null"`
	CurrentStock decimal.Decimal `json:"current_stock" gorm:"type:numeric(15,4)"`
	Unit         string          `json:"unit" gorm:"size:16;not null;default:pcs"`
	Cost         decimal.Decimal `json:"cost" gorm:"type:numeric(15,4)"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Material) TableName() string {
	return "materials"
}
