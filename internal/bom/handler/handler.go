package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
	"github.com/bitfantasy/nimo-bom/internal/bom/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	BOM      *BOMHandler
	Material *MaterialHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, repos *repository.Repositories) *Handlers {
	return &Handlers{
		BOM:      NewBOMHandler(svc.BOM),
		Material: NewMaterialHandler(svc.Material, repos.Product),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

// ErrorWithData 带结构化明细的错误响应，调用方可据此渲染确认对话框
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// BadRequest 400错误
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 404错误
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 500错误
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// ServiceError 将服务层错误映射为响应
func ServiceError(c *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		levelErr      *service.LevelMismatchError
		bomRefErr     *service.ReferencedByBOMError
		woRefErr      *service.ReferencedByWorkOrderError
	)
	switch {
	case errors.As(err, &validationErr):
		ErrorWithData(c, 40000, validationErr.Error(), validationErr)
	case errors.As(err, &levelErr):
		ErrorWithData(c, 40001, levelErr.Error(), levelErr)
	case errors.As(err, &bomRefErr):
		ErrorWithData(c, 40901, bomRefErr.Error(), bomRefErr)
	case errors.As(err, &woRefErr):
		ErrorWithData(c, 40902, woRefErr.Error(), woRefErr)
	case errors.Is(err, service.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrConcurrencyConflict):
		Error(c, 40903, err.Error())
	default:
		InternalError(c, err.Error())
	}
}
