package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BOMService BOM生命周期控制器：创建/编辑/复制/删除及结构维护
type BOMService struct {
	bomRepo       *repository.BOMRepository
	materialRepo  *repository.MaterialRepository
	productRepo   *repository.ProductRepository
	workOrderRepo *repository.WorkOrderRepository
}

func NewBOMService(
	bomRepo *repository.BOMRepository,
	materialRepo *repository.MaterialRepository,
	productRepo *repository.ProductRepository,
	workOrderRepo *repository.WorkOrderRepository,
) *BOMService {
	return &BOMService{
		bomRepo:       bomRepo,
		materialRepo:  materialRepo,
		productRepo:   productRepo,
		workOrderRepo: workOrderRepo,
	}
}

// InclusionInput 包含边输入
type InclusionInput struct {
	IncludedBOMID string          `json:"included_bom_id" binding:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	Notes         string          `json:"notes"`
}

// CreateOrUpdateBOMInput 创建/编辑BOM请求
// TargetID只对一级BOM有原地更新语义；其余层级提交一律产生新版本行
type CreateOrUpdateBOMInput struct {
	TargetID    string           `json:"target_id"`
	Name        string           `json:"name" binding:"required"`
	Level       int              `json:"level"`
	ParentID    *string          `json:"parent_id"`
	MaterialID  *string          `json:"material_id"`
	Description string           `json:"description"`
	Notes       string           `json:"notes"`
	Inclusions  []InclusionInput `json:"inclusions"`
	ProductIDs  []string         `json:"product_ids"`
}

// BOMWithCost BOM及其汇总成本
type BOMWithCost struct {
	entity.BOM
	TotalCost      decimal.Decimal `json:"total_cost"`
	ComponentCount int             `json:"component_count"`
}

// DeletionResult 删除结果
type DeletionResult struct {
	Deleted           bool     `json:"deleted"`
	DeletedWorkOrders []string `json:"deleted_work_orders"`
}

// CreateOrUpdateBOM 创建或编辑BOM
// 一级BOM带TargetID时原地更新可变字段；其余层级总是插入新版本行。
// 行、包含边、产品关联在同一事务内落库。
func (s *BOMService) CreateOrUpdateBOM(ctx context.Context, input *CreateOrUpdateBOMInput) (*entity.BOM, error) {
	if err := s.validateInput(ctx, input); err != nil {
		return nil, err
	}

	if input.Level == entity.BOMLevelGroup && input.TargetID != "" {
		return s.updateGroupInPlace(ctx, input)
	}
	return s.insertNewVersion(ctx, input)
}

// validateInput 写入前校验，任何失败都不产生写
func (s *BOMService) validateInput(ctx context.Context, input *CreateOrUpdateBOMInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if input.Level < entity.BOMLevelProduct || input.Level > entity.BOMLevelAccessory {
		return &ValidationError{Field: "level", Reason: "must be one of 0, 1, 2, 3"}
	}
	if input.Level == entity.BOMLevelComponent && input.MaterialID == nil {
		return &ValidationError{Field: "material_id", Reason: "level 2 bom requires a material"}
	}
	if input.Level != entity.BOMLevelComponent && input.MaterialID != nil {
		return &ValidationError{Field: "material_id", Reason: "material binding is only valid at level 2"}
	}
	if input.ParentID != nil && input.Level != entity.BOMLevelProduct {
		return &ValidationError{Field: "parent_id", Reason: "model family link is only valid at level 0"}
	}
	if len(input.Inclusions) > 0 && input.Level >= entity.BOMLevelComponent {
		return &ValidationError{Field: "inclusions", Reason: "level 2 and 3 boms cannot include other boms"}
	}
	if len(input.ProductIDs) > 0 && input.Level != entity.BOMLevelGroup {
		return &ValidationError{Field: "product_ids", Reason: "product links are only valid at level 1"}
	}

	if input.MaterialID != nil {
		if _, err := s.materialRepo.FindByID(ctx, *input.MaterialID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("material %s: %w", *input.MaterialID, ErrNotFound)
			}
			return fmt.Errorf("find material: %w", err)
		}
	}
	if input.ParentID != nil {
		parent, err := s.bomRepo.FindByID(ctx, *input.ParentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("parent bom %s: %w", *input.ParentID, ErrNotFound)
			}
			return fmt.Errorf("find parent bom: %w", err)
		}
		if parent.Level != input.Level {
			return &ValidationError{Field: "parent_id", Reason: "model family link must point to a bom of the same level"}
		}
	}
	if input.TargetID != "" && input.Level == entity.BOMLevelGroup {
		target, err := s.bomRepo.FindByID(ctx, input.TargetID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("bom %s: %w", input.TargetID, ErrNotFound)
			}
			return fmt.Errorf("find bom: %w", err)
		}
		if target.Level != entity.BOMLevelGroup {
			return &ValidationError{Field: "level", Reason: "cannot change the level of an existing bom"}
		}
	}
	return nil
}

// updateGroupInPlace 一级BOM原地更新：同一行、同一版本，只动可变字段
func (s *BOMService) updateGroupInPlace(ctx context.Context, input *CreateOrUpdateBOMInput) (*entity.BOM, error) {
	var updated *entity.BOM
	err := s.bomRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.bomRepo.WithTx(tx)

		bom, err := repo.FindByID(ctx, input.TargetID)
		if err != nil {
			return fmt.Errorf("find bom: %w", err)
		}

		fields := map[string]interface{}{
			"name":        input.Name,
			"description": input.Description,
			"notes":       input.Notes,
			"updated_at":  time.Now(),
		}
		if err := repo.UpdateFields(ctx, bom.ID, fields); err != nil {
			return fmt.Errorf("update bom: %w", err)
		}

		if err := s.setInclusionsTx(ctx, repo, bom.ID, bom.Level, input.Inclusions); err != nil {
			return err
		}
		if err := s.setProductLinksTx(ctx, repo, bom.ID, input.ProductIDs); err != nil {
			return err
		}

		updated, err = repo.FindByIDExpanded(ctx, bom.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// insertNewVersion 插入新版本行（0/2/3级的“编辑”也走这里）
// 版本号在事务内分配，撞唯一索引则整个事务重试
func (s *BOMService) insertNewVersion(ctx context.Context, input *CreateOrUpdateBOMInput) (*entity.BOM, error) {
	for attempt := 0; attempt < versionAllocationRetries; attempt++ {
		var created *entity.BOM
		err := s.bomRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.bomRepo.WithTx(tx)

			version, err := NextVersion(ctx, repo, input.Name, input.Level, input.ParentID)
			if err != nil {
				return err
			}

			now := time.Now()
			bom := &entity.BOM{
				ID:          uuid.New().String()[:32],
				Name:        input.Name,
				Version:     version,
				Level:       input.Level,
				ParentID:    input.ParentID,
				MaterialID:  input.MaterialID,
				Description: input.Description,
				Notes:       input.Notes,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := repo.Create(ctx, bom); err != nil {
				return fmt.Errorf("create bom: %w", err)
			}

			if bom.Level < entity.BOMLevelComponent {
				if err := s.setInclusionsTx(ctx, repo, bom.ID, bom.Level, input.Inclusions); err != nil {
					return err
				}
			}
			if bom.Level == entity.BOMLevelGroup {
				if err := s.setProductLinksTx(ctx, repo, bom.ID, input.ProductIDs); err != nil {
					return err
				}
			}

			created = bom
			return nil
		})
		if err == nil {
			return created, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return nil, err
	}
	return nil, ErrConcurrencyConflict
}

// DuplicateBOM 复制BOM：同标识、新版本、备注标明来源
// 包含边原样复制（新边、同目标同用量），产品关联不复制
func (s *BOMService) DuplicateBOM(ctx context.Context, id string) (*entity.BOM, error) {
	src, err := s.bomRepo.FindByIDExpanded(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("bom %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find bom: %w", err)
	}

	notes := fmt.Sprintf("duplicated from version %s", src.Version)
	if src.Notes != "" {
		notes = src.Notes + "\n" + notes
	}

	for attempt := 0; attempt < versionAllocationRetries; attempt++ {
		var created *entity.BOM
		err := s.bomRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.bomRepo.WithTx(tx)

			version, err := NextVersion(ctx, repo, src.Name, src.Level, src.ParentID)
			if err != nil {
				return err
			}

			now := time.Now()
			dup := &entity.BOM{
				ID:          uuid.New().String()[:32],
				Name:        src.Name,
				Version:     version,
				Level:       src.Level,
				ParentID:    src.ParentID,
				MaterialID:  src.MaterialID,
				Description: src.Description,
				Notes:       notes,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := repo.Create(ctx, dup); err != nil {
				return fmt.Errorf("create bom: %w", err)
			}

			if src.Level < entity.BOMLevelComponent && len(src.Inclusions) > 0 {
				edges := make([]entity.BOMInclusion, 0, len(src.Inclusions))
				for _, e := range src.Inclusions {
					edges = append(edges, entity.BOMInclusion{
						ID:            uuid.New().String()[:32],
						ParentBOMID:   dup.ID,
						IncludedBOMID: e.IncludedBOMID,
						Quantity:      e.Quantity,
						Notes:         e.Notes,
						CreatedAt:     now,
					})
				}
				if err := repo.ReplaceInclusions(ctx, dup.ID, edges); err != nil {
					return fmt.Errorf("copy inclusions: %w", err)
				}
			}

			created = dup
			return nil
		})
		if err == nil {
			return created, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return nil, err
	}
	return nil, ErrConcurrencyConflict
}

// DeleteBOM 依赖感知删除
// 被其他BOM包含时一律拒绝；被工单引用时需显式确认级联，
// 级联（执行记录→行项→工单→出边→产品关联→BOM行）全有或全无。
func (s *BOMService) DeleteBOM(ctx context.Context, id string, confirmCascade bool) (*DeletionResult, error) {
	if _, err := s.bomRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("bom %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find bom: %w", err)
	}

	incoming, err := s.bomRepo.ListIncomingInclusions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list incoming inclusions: %w", err)
	}
	if len(incoming) > 0 {
		refs := make([]string, 0, len(incoming))
		for _, e := range incoming {
			refs = append(refs, e.ParentBOMID)
		}
		return nil, &ReferencedByBOMError{BOMID: id, ReferencingBOMIDs: refs}
	}

	workOrders, err := s.workOrderRepo.ListByBOM(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list work orders: %w", err)
	}
	if len(workOrders) > 0 && !confirmCascade {
		ids := make([]string, 0, len(workOrders))
		for _, wo := range workOrders {
			ids = append(ids, wo.ID)
		}
		return nil, &ReferencedByWorkOrderError{BOMID: id, WorkOrderIDs: ids}
	}

	result := &DeletionResult{Deleted: true}
	err = s.bomRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bomRepo := s.bomRepo.WithTx(tx)
		woRepo := s.workOrderRepo.WithTx(tx)

		for _, wo := range workOrders {
			if err := woRepo.DeleteCascade(ctx, wo.ID); err != nil {
				return fmt.Errorf("delete work order %s: %w", wo.ID, err)
			}
			result.DeletedWorkOrders = append(result.DeletedWorkOrders, wo.ID)
		}

		if err := bomRepo.DeleteInclusionsByParent(ctx, id); err != nil {
			return fmt.Errorf("delete inclusions: %w", err)
		}
		if err := bomRepo.DeleteProductLinksByBOM(ctx, id); err != nil {
			return fmt.Errorf("delete product links: %w", err)
		}
		if err := bomRepo.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete bom: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetInclusions 全量替换BOM的包含边
func (s *BOMService) SetInclusions(ctx context.Context, parentBOMID string, edges []InclusionInput) error {
	parent, err := s.bomRepo.FindByID(ctx, parentBOMID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("bom %s: %w", parentBOMID, ErrNotFound)
		}
		return fmt.Errorf("find bom: %w", err)
	}

	return s.bomRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.setInclusionsTx(ctx, s.bomRepo.WithTx(tx), parent.ID, parent.Level, edges)
	})
}

// setInclusionsTx 校验并全量替换出边，必须在事务内调用
// 层级不变式在这里保证：边只能指向恰好低一级的BOM，结构性无环
func (s *BOMService) setInclusionsTx(ctx context.Context, repo *repository.BOMRepository, parentID string, parentLevel int, edges []InclusionInput) error {
	if parentLevel >= entity.BOMLevelComponent {
		if len(edges) == 0 {
			return nil
		}
		return &ValidationError{Field: "inclusions", Reason: "level 2 and 3 boms cannot include other boms"}
	}

	one := decimal.NewFromInt(1)
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		if e.Quantity.LessThan(one) {
			return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
		}
		ids = append(ids, e.IncludedBOMID)
	}

	targets, err := repo.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("find included boms: %w", err)
	}
	byID := make(map[string]*entity.BOM, len(targets))
	for i := range targets {
		byID[targets[i].ID] = &targets[i]
	}

	now := time.Now()
	rows := make([]entity.BOMInclusion, 0, len(edges))
	for _, e := range edges {
		target, ok := byID[e.IncludedBOMID]
		if !ok {
			return fmt.Errorf("included bom %s: %w", e.IncludedBOMID, ErrNotFound)
		}
		if target.Level != parentLevel+1 {
			return &LevelMismatchError{
				ParentBOMID:   parentID,
				IncludedBOMID: target.ID,
				WantLevel:     parentLevel + 1,
				GotLevel:      target.Level,
			}
		}
		rows = append(rows, entity.BOMInclusion{
			ID:            uuid.New().String()[:32],
			ParentBOMID:   parentID,
			IncludedBOMID: e.IncludedBOMID,
			Quantity:      e.Quantity,
			Notes:         e.Notes,
			CreatedAt:     now,
		})
	}

	if err := repo.ReplaceInclusions(ctx, parentID, rows); err != nil {
		return fmt.Errorf("replace inclusions: %w", err)
	}
	return nil
}

// SetProductLinks 全量替换一级BOM的产品关联
func (s *BOMService) SetProductLinks(ctx context.Context, bomID string, productIDs []string) error {
	bom, err := s.bomRepo.FindByID(ctx, bomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("bom %s: %w", bomID, ErrNotFound)
		}
		return fmt.Errorf("find bom: %w", err)
	}
	if bom.Level != entity.BOMLevelGroup {
		return &ValidationError{Field: "bom_id", Reason: "product links are only valid at level 1"}
	}

	return s.bomRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.setProductLinksTx(ctx, s.bomRepo.WithTx(tx), bomID, productIDs)
	})
}

// setProductLinksTx 校验并全量替换产品关联，必须在事务内调用
func (s *BOMService) setProductLinksTx(ctx context.Context, repo *repository.BOMRepository, bomID string, productIDs []string) error {
	products, err := s.productRepo.FindByIDs(ctx, productIDs)
	if err != nil {
		return fmt.Errorf("find products: %w", err)
	}
	known := make(map[string]bool, len(products))
	for _, p := range products {
		known[p.ID] = true
	}

	now := time.Now()
	links := make([]entity.BOMProductLink, 0, len(productIDs))
	for _, pid := range productIDs {
		if !known[pid] {
			return fmt.Errorf("product %s: %w", pid, ErrNotFound)
		}
		links = append(links, entity.BOMProductLink{
			ID:        uuid.New().String()[:32],
			BOMID:     bomID,
			ProductID: pid,
			CreatedAt: now,
		})
	}

	if err := repo.ReplaceProductLinks(ctx, bomID, links); err != nil {
		return fmt.Errorf("replace product links: %w", err)
	}
	return nil
}

// GetBOMWithCost 获取BOM详情及汇总成本，成本每次读取重算
func (s *BOMService) GetBOMWithCost(ctx context.Context, id string) (*BOMWithCost, error) {
	bom, err := s.bomRepo.FindByIDExpanded(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("bom %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find bom: %w", err)
	}
	return &BOMWithCost{
		BOM:            *bom,
		TotalCost:      RollupCost(bom),
		ComponentCount: len(bom.Inclusions),
	}, nil
}

// ListBOMsByLevel 按层级获取BOM列表，每行带汇总成本与组件数
func (s *BOMService) ListBOMsByLevel(ctx context.Context, level int, name string) ([]BOMWithCost, error) {
	if level < entity.BOMLevelProduct || level > entity.BOMLevelAccessory {
		return nil, &ValidationError{Field: "level", Reason: "must be one of 0, 1, 2, 3"}
	}

	boms, err := s.bomRepo.ListByLevel(ctx, level, name)
	if err != nil {
		return nil, fmt.Errorf("list boms: %w", err)
	}

	result := make([]BOMWithCost, 0, len(boms))
	for i := range boms {
		result = append(result, BOMWithCost{
			BOM:            boms[i],
			TotalCost:      RollupCost(&boms[i]),
			ComponentCount: len(boms[i].Inclusions),
		})
	}
	return result, nil
}

// ListWorkOrders 获取引用指定BOM的工单
func (s *BOMService) ListWorkOrders(ctx context.Context, bomID string) ([]entity.WorkOrder, error) {
	return s.workOrderRepo.ListByBOM(ctx, bomID)
}
