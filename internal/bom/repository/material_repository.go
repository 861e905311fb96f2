package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"gorm.io/gorm"
)

type MaterialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// List 获取物料列表
func (r *MaterialRepository) List(ctx context.Context, keyword string) ([]entity.Material, error) {
	var materials []entity.Material
	query := r.db.WithContext(ctx)
	if keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("name ILIKE ? OR code ILIKE ?", like, like)
	}
	err := query.Order("code ASC").Find(&materials).Error
	return materials, err
}

// FindByID 根据ID查找物料
func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*entity.Material, error) {
	var material entity.Material
	err := r.db.WithContext(ctx).First(&material, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &material, nil
}
