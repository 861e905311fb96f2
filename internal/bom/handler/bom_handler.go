package handler

import (
	"strconv"

	"github.com/bitfantasy/nimo-bom/internal/bom/service"
	"github.com/gin-gonic/gin"
)

type BOMHandler struct {
	svc *service.BOMService
}

func NewBOMHandler(svc *service.BOMService) *BOMHandler {
	return &BOMHandler{svc: svc}
}

// ListBOMs GET /boms?level=1&name=
func (h *BOMHandler) ListBOMs(c *gin.Context) {
	level, err := strconv.Atoi(c.DefaultQuery("level", "0"))
	if err != nil {
		BadRequest(c, "invalid level: "+c.Query("level"))
		return
	}
	name := c.Query("name")

	boms, err := h.svc.ListBOMsByLevel(c.Request.Context(), level, name)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, boms)
}

// GetBOM GET /boms/:id
func (h *BOMHandler) GetBOM(c *gin.Context) {
	bom, err := h.svc.GetBOMWithCost(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, bom)
}

// CreateOrUpdateBOM POST /boms
func (h *BOMHandler) CreateOrUpdateBOM(c *gin.Context) {
	var input service.CreateOrUpdateBOMInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	bom, err := h.svc.CreateOrUpdateBOM(c.Request.Context(), &input)
	if err != nil {
		ServiceError(c, err)
		return
	}
	if input.Level == 1 && input.TargetID != "" {
		Success(c, bom)
		return
	}
	Created(c, bom)
}

// DuplicateBOM POST /boms/:id/duplicate
func (h *BOMHandler) DuplicateBOM(c *gin.Context) {
	bom, err := h.svc.DuplicateBOM(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, bom)
}

// DeleteBOM DELETE /boms/:id?confirm_cascade=true
func (h *BOMHandler) DeleteBOM(c *gin.Context) {
	confirmCascade := c.Query("confirm_cascade") == "true"

	result, err := h.svc.DeleteBOM(c.Request.Context(), c.Param("id"), confirmCascade)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, result)
}

// SetInclusions PUT /boms/:id/inclusions
func (h *BOMHandler) SetInclusions(c *gin.Context) {
	var input struct {
		Inclusions []service.InclusionInput `json:"inclusions"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := h.svc.SetInclusions(c.Request.Context(), c.Param("id"), input.Inclusions); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, nil)
}

// SetProductLinks PUT /boms/:id/products
func (h *BOMHandler) SetProductLinks(c *gin.Context) {
	var input struct {
		ProductIDs []string `json:"product_ids"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := h.svc.SetProductLinks(c.Request.Context(), c.Param("id"), input.ProductIDs); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, nil)
}

// ListWorkOrders GET /boms/:id/work-orders
func (h *BOMHandler) ListWorkOrders(c *gin.Context) {
	wos, err := h.svc.ListWorkOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, wos)
}
