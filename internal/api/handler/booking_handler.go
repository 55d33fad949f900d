package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/service"
	"github.com/arunvijo/SmartOPDAgent/pkg/response"
)

// BookingHandler 预约模块 HTTP 处理器
type BookingHandler struct {
	bookingSvc service.BookingService
}

// NewBookingHandler 创建 BookingHandler
func NewBookingHandler(bookingSvc service.BookingService) *BookingHandler {
	return &BookingHandler{bookingSvc: bookingSvc}
}

// ListBookings 我的预约，按就诊日期倒序
// GET /api/v1/bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	patientID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.bookingSvc.ListMine(c.Request.Context(), patientID)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ListUpcoming 首页即将到来的预约
// GET /api/v1/bookings/upcoming?limit=3
func (h *BookingHandler) ListUpcoming(c *gin.Context) {
	var q dto.UpcomingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	patientID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.bookingSvc.ListUpcoming(c.Request.Context(), patientID, q.Limit)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CreateBooking 预约时段
// POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	patientID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.Book(c.Request.Context(), patientID, &req)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	response.Created(c, booking)
}

// Calendar 以 iCalendar 格式导出我的预约
// GET /api/v1/bookings/calendar.ics
func (h *BookingHandler) Calendar(c *gin.Context) {
	patientID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	body, err := h.bookingSvc.Calendar(c.Request.Context(), patientID)
	if err != nil {
		response.InternalError(c)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="smartopd_bookings.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// handleBookingError 统一处理预约模块业务错误
func (h *BookingHandler) handleBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSlotNotAvailable):
		response.Conflict(c, 19001, "该时段不可预约")
	case errors.Is(err, service.ErrBookingForbidden):
		response.Forbidden(c, 19002, "仅患者可以预约")
	case errors.Is(err, service.ErrBookingInPast):
		response.BadRequest(c, 19003, "不能预约过去的日期")
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 14001, "日期格式无效，应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrSlotIndexOutOfRange):
		response.BadRequest(c, 14005, "时段序号超出范围")
	case errors.Is(err, service.ErrDayScheduleNotFound):
		response.NotFound(c, 14004, "该日期尚未生成出诊表")
	case errors.Is(err, service.ErrDoctorNotFound):
		response.NotFound(c, 14008, "医生不存在或尚未通过审核")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 12001, "用户不存在")
	default:
		response.InternalError(c)
	}
}
