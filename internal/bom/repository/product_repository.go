package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List 获取产品列表
func (r *ProductRepository) List(ctx context.Context, keyword string) ([]entity.Product, error) {
	var products []entity.Product
	query := r.db.WithContext(ctx)
	if keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("name ILIKE ? OR code ILIKE ?", like, like)
	}
	err := query.Order("code ASC").Find(&products).Error
	return products, err
}

// FindByID 根据ID查找产品
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	var product entity.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindByIDs 批量查找产品
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []entity.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, err
}
