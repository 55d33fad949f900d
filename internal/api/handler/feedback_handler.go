package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/service"
	"github.com/arunvijo/SmartOPDAgent/pkg/response"
)

// FeedbackHandler 反馈模块 HTTP 处理器
type FeedbackHandler struct {
	feedbackSvc service.FeedbackService
}

// NewFeedbackHandler 创建 FeedbackHandler
func NewFeedbackHandler(feedbackSvc service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackSvc: feedbackSvc}
}

// Submit 提交反馈
// POST /api/v1/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req dto.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	fb, err := h.feedbackSvc.Submit(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrFeedbackEmpty) {
			response.BadRequest(c, 19004, "反馈内容不能为空")
			return
		}
		response.InternalError(c)
		return
	}

	response.Created(c, fb)
}
