package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
	"github.com/redis/go-redis/v9"
)

const (
	materialListCacheKey = "bom:materials:list"
	materialListCacheTTL = 60 * time.Second
)

// MaterialService 物料服务（只读目录，带短TTL缓存）
type MaterialService struct {
	repo *repository.MaterialRepository
	rdb  *redis.Client
}

func NewMaterialService(repo *repository.MaterialRepository, rdb *redis.Client) *MaterialService {
	return &MaterialService{repo: repo, rdb: rdb}
}

// List 获取物料列表，无关键字时走缓存
func (s *MaterialService) List(ctx context.Context, keyword string) ([]entity.Material, error) {
	if keyword == "" && s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, materialListCacheKey).Bytes(); err == nil {
			var materials []entity.Material
			if json.Unmarshal(cached, &materials) == nil {
				return materials, nil
			}
		}
	}

	materials, err := s.repo.List(ctx, keyword)
	if err != nil {
		return nil, err
	}

	if keyword == "" && s.rdb != nil {
		if data, err := json.Marshal(materials); err == nil {
			s.rdb.Set(ctx, materialListCacheKey, data, materialListCacheTTL)
		}
	}
	return materials, nil
}

// Get 获取物料详情
func (s *MaterialService) Get(ctx context.Context, id string) (*entity.Material, error) {
	return s.repo.FindByID(ctx, id)
}
