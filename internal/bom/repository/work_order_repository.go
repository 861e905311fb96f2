package repository

import (
	"context"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"gorm.io/gorm"
)

type WorkOrderRepository struct {
	db *gorm.DB
}

func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *WorkOrderRepository) WithTx(tx *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: tx}
}

// ListByBOM 获取引用指定BOM的工单
func (r *WorkOrderRepository) ListByBOM(ctx context.Context, bomID string) ([]entity.WorkOrder, error) {
	var wos []entity.WorkOrder
	err := r.db.WithContext(ctx).
		Where("bom_id = ?", bomID).
		Order("created_at ASC").
		Find(&wos).Error
	return wos, err
}

// DeleteCascade 删除工单及其行项和执行记录
func (r *WorkOrderRepository) DeleteCascade(ctx context.Context, workOrderID string) error {
	if err := r.db.WithContext(ctx).Delete(&entity.WorkOrderExecution{}, "work_order_id = ?", workOrderID).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&entity.WorkOrderItem{}, "work_order_id = ?", workOrderID).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&entity.WorkOrder{}, "id = ?", workOrderID).Error
}
