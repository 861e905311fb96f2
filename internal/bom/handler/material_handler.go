package handler

import (
	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
	"github.com/bitfantasy/nimo-bom/internal/bom/service"
	"github.com/gin-gonic/gin"
)

// MaterialHandler 物料/产品目录只读接口
type MaterialHandler struct {
	svc         *service.MaterialService
	productRepo *repository.ProductRepository
}

func NewMaterialHandler(svc *service.MaterialService, productRepo *repository.ProductRepository) *MaterialHandler {
	return &MaterialHandler{svc: svc, productRepo: productRepo}
}

// ListMaterials GET /materials?keyword=
func (h *MaterialHandler) ListMaterials(c *gin.Context) {
	materials, err := h.svc.List(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, materials)
}

// GetMaterial GET /materials/:id
func (h *MaterialHandler) GetMaterial(c *gin.Context) {
	material, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, material)
}

// ListProducts GET /products?keyword=
func (h *MaterialHandler) ListProducts(c *gin.Context) {
	products, err := h.productRepo.List(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, products)
}
