package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// WorkOrderStatus 工单状态
const (
	WOStatusCreated    = "CREATED"
	WOStatusInProgress = "IN_PROGRESS"
	WOStatusCompleted  = "COMPLETED"
)

// WorkOrder 生产工单，引用BOM；存在引用工单会阻止BOM删除
type WorkOrder struct {
	ID         string          `json:"id" gorm:"primaryKey;size:32"`
	Code       string          `json:"code" gorm:"size:50;not null;uniqueIndex"`
	BOMID      string          `json:"bom_id" gorm:"size:32;not null;index"`
	Status     string          `json:"status" gorm:"size:20;not null;default:CREATED"`
	PlannedQty decimal.Decimal `json:"planned_qty" gorm:"type:numeric(12,4);not null"`
	Notes      string          `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`

	// 关联
	Items      []WorkOrderItem      `json:"items,omitempty" gorm:"foreignKey:WorkOrderID"`
	Executions []WorkOrderExecution `json:"executions,omitempty" gorm:"foreignKey:WorkOrderID"`
}

func (WorkOrder) TableName() string {
	return "work_orders"
}

// WorkOrderItem 工单物料行项
type WorkOrderItem struct {
	ID          string          `json:"id" gorm:"primaryKey;size:32"`
	WorkOrderID string          `json:"work_order_id" gorm:"size:32;not null;index"`
	MaterialID  *string         `json:"material_id,omitempty" gorm:"size:32"`
	Name        string          `json:"name" gorm:"size:128;not null"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:numeric(12,4);not null"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (WorkOrderItem) TableName() string {
	return "work_order_items"
}

// WorkOrderExecution 工单执行记录（报工）
type WorkOrderExecution struct {
	ID          string          `json:"id" gorm:"primaryKey;size:32"`
	WorkOrderID string          `json:"work_order_id" gorm:"size:32;not null;index"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:numeric(12,4);not null"`
	Notes       string          `json:"notes,omitempty" gorm:"type:text"`
	ExecutedAt  time.Time       `json:"executed_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (WorkOrderExecution) TableName() string {
	return "work_order_executions"
}
