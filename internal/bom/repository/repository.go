package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	BOM       *BOMRepository
	Material  *MaterialRepository
	Product   *ProductRepository
	WorkOrder *WorkOrderRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		BOM:       NewBOMRepository(db),
		Material:  NewMaterialRepository(db),
		Product:   NewProductRepository(db),
		WorkOrder: NewWorkOrderRepository(db),
	}
}
