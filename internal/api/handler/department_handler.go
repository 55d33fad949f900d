package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/service"
	"github.com/arunvijo/SmartOPDAgent/pkg/response"
)

// DepartmentHandler 科室模块 HTTP 处理器
type DepartmentHandler struct {
	deptSvc service.DepartmentService
}

// NewDepartmentHandler 创建 DepartmentHandler
func NewDepartmentHandler(deptSvc service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{deptSvc: deptSvc}
}

// ListDepartments 获取科室列表（注册页与管理端共用）
// GET /api/v1/departments
// GET /api/v1/admin/departments
func (h *DepartmentHandler) ListDepartments(c *gin.Context) {
	depts, err := h.deptSvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": depts})
}

// CreateDepartment 创建科室
// POST /api/v1/admin/departments
func (h *DepartmentHandler) CreateDepartment(c *gin.Context) {
	var req dto.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	dept, err := h.deptSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.Created(c, dept)
}

// DeleteDepartment 删除科室，所属医生的科室引用置空
// DELETE /api/v1/admin/departments/:id
func (h *DepartmentHandler) DeleteDepartment(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id", "科室ID")
	if !ok {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.deptSvc.Delete(c.Request.Context(), id, callerID)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, result)
}

// handleDepartmentError 统一处理科室模块业务错误
func (h *DepartmentHandler) handleDepartmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDepartmentNotFound):
		response.NotFound(c, 13001, "科室不存在")
	case errors.Is(err, service.ErrDepartmentNameBlank):
		response.BadRequest(c, 13002, "科室名称不能为空")
	default:
		response.InternalError(c)
	}
}
