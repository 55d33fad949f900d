package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/service"
	"github.com/arunvijo/SmartOPDAgent/pkg/response"
)

// AdminHandler 管理端 HTTP 处理器
type AdminHandler struct {
	adminSvc service.AdminService
}

// NewAdminHandler 创建 AdminHandler
func NewAdminHandler(adminSvc service.AdminService) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc}
}

// Stats 仪表盘统计
// GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminSvc.Stats(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, stats)
}

// ListDoctors 医生列表，可按审核状态筛选
// GET /api/v1/admin/doctors?status=pending
func (h *AdminHandler) ListDoctors(c *gin.Context) {
	var req dto.DoctorListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	doctors, err := h.adminSvc.ListDoctors(c.Request.Context(), req.Status)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": doctors})
}

// ApproveDoctor 通过医生审核
// PUT /api/v1/admin/doctors/:id/approve
func (h *AdminHandler) ApproveDoctor(c *gin.Context) {
	h.decide(c, h.adminSvc.Approve)
}

// RejectDoctor 拒绝医生审核
// PUT /api/v1/admin/doctors/:id/reject
func (h *AdminHandler) RejectDoctor(c *gin.Context) {
	h.decide(c, h.adminSvc.Reject)
}

// ListUsers 用户列表，支持姓名/邮箱模糊搜索与角色筛选
// GET /api/v1/admin/users?keyword=&role=&page=&page_size=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var req dto.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	users, total, err := h.adminSvc.ListUsers(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, users, total, req.GetPage(), req.GetPageSize())
}

// ListFeedback 反馈列表，附患者与医生姓名
// GET /api/v1/admin/feedback?page=&page_size=
func (h *AdminHandler) ListFeedback(c *gin.Context) {
	var req dto.FeedbackListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.adminSvc.ListFeedback(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ── 内部辅助方法 ──

type decisionFunc func(ctx context.Context, doctorID, callerID string) (*dto.UserResponse, error)

func (h *AdminHandler) decide(c *gin.Context, fn decisionFunc) {
	doctorID, ok := MustGetUUIDParam(c, "id", "医生ID")
	if !ok {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	doctor, err := fn(c.Request.Context(), doctorID, callerID)
	if err != nil {
		h.handleAdminError(c, err)
		return
	}

	response.OK(c, doctor)
}

// handleAdminError 统一处理管理端业务错误
func (h *AdminHandler) handleAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 12001, "用户不存在")
	case errors.Is(err, service.ErrNotADoctor):
		response.BadRequest(c, 18001, "该用户不是医生")
	case errors.Is(err, service.ErrDoctorStatusFinal):
		response.Conflict(c, 18002, "医生审核结果已确定，不能更改")
	default:
		response.InternalError(c)
	}
}
