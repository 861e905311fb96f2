package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"gorm.io/gorm"
)

type BOMRepository struct {
	db *gorm.DB
}

func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

// DB 返回底层db用于事务
func (r *BOMRepository) DB() *gorm.DB {
	return r.db
}

// WithTx 返回绑定到事务的仓库
func (r *BOMRepository) WithTx(tx *gorm.DB) *BOMRepository {
	return &BOMRepository{db: tx}
}

// Create 创建BOM
func (r *BOMRepository) Create(ctx context.Context, bom *entity.BOM) error {
	return r.db.WithContext(ctx).Create(bom).Error
}

// FindByID 根据ID查找BOM（浅加载）
func (r *BOMRepository) FindByID(ctx context.Context, id string) (*entity.BOM, error) {
	var bom entity.BOM
	err := r.db.WithContext(ctx).First(&bom, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bom, nil
}

// FindByIDExpanded 根据ID查找BOM并物化完整子树
// 层级最多0→1→2，两跳嵌套Preload即可覆盖全深度
func (r *BOMRepository) FindByIDExpanded(ctx context.Context, id string) (*entity.BOM, error) {
	var bom entity.BOM
	err := r.db.WithContext(ctx).
		Preload("Material").
		Preload("Inclusions").
		Preload("Inclusions.Included").
		Preload("Inclusions.Included.Material").
		Preload("Inclusions.Included.Inclusions").
		Preload("Inclusions.Included.Inclusions.Included").
		Preload("Inclusions.Included.Inclusions.Included.Material").
		Preload("ProductLinks").
		Preload("ProductLinks.Product").
		First(&bom, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bom, nil
}

// FindByIDs 批量查找BOM
func (r *BOMRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.BOM, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var boms []entity.BOM
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&boms).Error
	return boms, err
}

// ListByLevel 按层级获取BOM列表（含子树展开，用于成本汇总）
func (r *BOMRepository) ListByLevel(ctx context.Context, level int, name string) ([]entity.BOM, error) {
	var boms []entity.BOM
	query := r.db.WithContext(ctx).
		Preload("Material").
		Preload("Inclusions").
		Preload("Inclusions.Included").
		Preload("Inclusions.Included.Material").
		Preload("Inclusions.Included.Inclusions").
		Preload("Inclusions.Included.Inclusions.Included").
		Preload("Inclusions.Included.Inclusions.Included.Material").
		Where("level = ?", level)
	if name != "" {
		query = query.Where("name ILIKE ?", "%"+name+"%")
	}
	err := query.Order("name ASC, version ASC").Find(&boms).Error
	return boms, err
}

// LockIdentity 对版本标识取事务级咨询锁，串行化同一标识的读取-插入
// 锁随事务提交释放，必须在事务绑定的仓库上调用
func (r *BOMRepository) LockIdentity(ctx context.Context, name string, level int, parentID *string) error {
	key := fmt.Sprintf("%s:%d:", name, level)
	if parentID != nil {
		key += *parentID
	}
	return r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error
}

// ListVersions 获取同一标识(name, level, parent_id)下的所有版本标签
func (r *BOMRepository) ListVersions(ctx context.Context, name string, level int, parentID *string) ([]string, error) {
	var versions []string
	query := r.db.WithContext(ctx).Model(&entity.BOM{}).
		Where("name = ? AND level = ?", name, level)
	if parentID != nil {
		query = query.Where("parent_id = ?", *parentID)
	} else {
		query = query.Where("parent_id IS NULL")
	}
	err := query.Pluck("version", &versions).Error
	return versions, err
}

// UpdateFields 更新BOM的可变字段
func (r *BOMRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.BOM{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 删除BOM行
func (r *BOMRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.BOM{}, "id = ?", id).Error
}

// ReplaceInclusions 全量替换BOM的出边（删旧插新）
func (r *BOMRepository) ReplaceInclusions(ctx context.Context, parentID string, edges []entity.BOMInclusion) error {
	if err := r.db.WithContext(ctx).Delete(&entity.BOMInclusion{}, "parent_bom_id = ?", parentID).Error; err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&edges).Error
}

// DeleteInclusionsByParent 删除BOM的所有出边
func (r *BOMRepository) DeleteInclusionsByParent(ctx context.Context, parentID string) error {
	return r.db.WithContext(ctx).Delete(&entity.BOMInclusion{}, "parent_bom_id = ?", parentID).Error
}

// ListIncomingInclusions 获取指向该BOM的入边（其他BOM对它的引用）
func (r *BOMRepository) ListIncomingInclusions(ctx context.Context, includedID string) ([]entity.BOMInclusion, error) {
	var edges []entity.BOMInclusion
	err := r.db.WithContext(ctx).
		Where("included_bom_id = ?", includedID).
		Find(&edges).Error
	return edges, err
}

// ReplaceProductLinks 全量替换BOM的产品关联
func (r *BOMRepository) ReplaceProductLinks(ctx context.Context, bomID string, links []entity.BOMProductLink) error {
	if err := r.db.WithContext(ctx).Delete(&entity.BOMProductLink{}, "bom_id = ?", bomID).Error; err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&links).Error
}

// DeleteProductLinksByBOM 删除BOM的所有产品关联
func (r *BOMRepository) DeleteProductLinksByBOM(ctx context.Context, bomID string) error {
	return r.db.WithContext(ctx).Delete(&entity.BOMProductLink{}, "bom_id = ?", bomID).Error
}
