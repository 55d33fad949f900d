package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/service"
	pkgerrors "github.com/arunvijo/SmartOPDAgent/pkg/errors"
	"github.com/arunvijo/SmartOPDAgent/pkg/response"
)

// AvailabilityHandler 出诊表模块 HTTP 处理器
type AvailabilityHandler struct {
	availSvc service.AvailabilityService
}

// NewAvailabilityHandler 创建 AvailabilityHandler
func NewAvailabilityHandler(availSvc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availSvc: availSvc}
}

// ────────────────────── 医生端 ──────────────────────

// GetMyDay 医生查看自己某天的出诊表；未生成时 exists=false
// GET /api/v1/doctor/availability?date=2026-03-10
func (h *AvailabilityHandler) GetMyDay(c *gin.Context) {
	var q dto.DayQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	doctorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	day, err := h.availSvc.LoadDay(c.Request.Context(), doctorID, q.Date)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OK(c, day)
}

// GenerateDay 按默认模板生成出诊表
// POST /api/v1/doctor/availability
func (h *AvailabilityHandler) GenerateDay(c *gin.Context) {
	var req dto.GenerateDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	doctorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	day, err := h.availSvc.GenerateDay(c.Request.Context(), doctorID, req.Date)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.Created(c, day)
}

// ToggleSlot 切换时段可预约状态
// PUT /api/v1/doctor/availability/:date/slots/:index/toggle
func (h *AvailabilityHandler) ToggleSlot(c *gin.Context) {
	index, ok := MustGetIntParam(c, "index")
	if !ok {
		return
	}

	doctorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	day, err := h.availSvc.ToggleSlot(c.Request.Context(), doctorID, c.Param("date"), index)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OK(c, day)
}

// ────────────────────── 患者端 ──────────────────────

// GetDoctorDay 患者查看医生某天的出诊表，不含预约患者信息
// GET /api/v1/doctors/:id/availability?date=2026-03-10
func (h *AvailabilityHandler) GetDoctorDay(c *gin.Context) {
	doctorID, ok := MustGetUUIDParam(c, "id", "医生ID")
	if !ok {
		return
	}

	var q dto.DayQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	day, err := h.availSvc.PublicDay(c.Request.Context(), doctorID, q.Date)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OK(c, day)
}

// handleAvailabilityError 统一处理出诊表模块业务错误
func (h *AvailabilityHandler) handleAvailabilityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 14001, "日期格式无效，应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrDateInPast):
		response.BadRequest(c, 14002, "不能为过去的日期生成出诊表")
	case errors.Is(err, service.ErrDayScheduleExists):
		response.Conflict(c, 14003, "该日期的出诊表已存在")
	case errors.Is(err, service.ErrDayScheduleNotFound):
		response.NotFound(c, 14004, "该日期尚未生成出诊表")
	case errors.Is(err, service.ErrSlotIndexOutOfRange):
		response.BadRequest(c, 14005, "时段序号超出范围")
	case errors.Is(err, service.ErrSlotBooked):
		response.Conflict(c, 14006, "已预约的时段不能修改")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 14007, "出诊表已被修改，请刷新后重试")
	case errors.Is(err, service.ErrDoctorNotFound):
		response.NotFound(c, 14008, "医生不存在或尚未通过审核")
	default:
		response.InternalError(c)
	}
}
