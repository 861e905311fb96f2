package service

import (
	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
	"github.com/redis/go-redis/v9"
)

// Services 服务集合
type Services struct {
	BOM      *BOMService
	Material *MaterialService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, rdb *redis.Client) *Services {
	return &Services{
		BOM:      NewBOMService(repos.BOM, repos.Material, repos.Product, repos.WorkOrder),
		Material: NewMaterialService(repos.Material, rdb),
	}
}
