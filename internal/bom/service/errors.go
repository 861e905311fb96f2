package service

import (
	"errors"
	"fmt"
)

// 错误定义
var (
	ErrNotFound            = errors.New("record not found")
	ErrConcurrencyConflict = errors.New("version allocation conflict")
)

// ValidationError 输入校验错误，写入前返回
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// LevelMismatchError 包含边指向了错误层级的BOM
type LevelMismatchError struct {
	ParentBOMID   string `json:"parent_bom_id"`
	IncludedBOMID string `json:"included_bom_id"`
	WantLevel     int    `json:"want_level"`
	GotLevel      int    `json:"got_level"`
}

func (e *LevelMismatchError) Error() string {
	return fmt.Sprintf("bom %s cannot include bom %s: want level %d, got %d",
		e.ParentBOMID, e.IncludedBOMID, e.WantLevel, e.GotLevel)
}

// ReferencedByBOMError 删除被其他BOM的包含边阻止
type ReferencedByBOMError struct {
	BOMID             string   `json:"bom_id"`
	ReferencingBOMIDs []string `json:"referencing_bom_ids"`
}

func (e *ReferencedByBOMError) Error() string {
	return fmt.Sprintf("bom %s is included by %d other bom(s)", e.BOMID, len(e.ReferencingBOMIDs))
}

// ReferencedByWorkOrderError 删除被生产工单阻止，需显式确认级联
type ReferencedByWorkOrderError struct {
	BOMID        string   `json:"bom_id"`
	WorkOrderIDs []string `json:"work_order_ids"`
}

func (e *ReferencedByWorkOrderError) Error() string {
	return fmt.Sprintf("bom %s is referenced by %d work order(s)", e.BOMID, len(e.WorkOrderIDs))
}
