package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/arunvijo/SmartOPDAgent/internal/client/agent"
	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/service"
	"github.com/arunvijo/SmartOPDAgent/pkg/response"
)

// ChatHandler 导诊对话 HTTP 处理器
type ChatHandler struct {
	chatSvc service.ChatService
}

// NewChatHandler 创建 ChatHandler
func NewChatHandler(chatSvc service.ChatService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// Send 转发消息到导诊服务；上游异常时仍返回 200 与兜底回复
// POST /api/v1/chat
func (h *ChatHandler) Send(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	// 用户 ID 由业务层校验，缺失时不发起网络请求
	userID := currentSnapshot(c).Principal

	reply, err := h.chatSvc.Send(c.Request.Context(), userID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrUnauthenticated):
			response.Unauthorized(c, 16001, "请先登录")
		case errors.Is(err, agent.ErrEmptyMessage):
			response.BadRequest(c, 16002, "消息不能为空")
		default:
			response.InternalError(c)
		}
		return
	}

	response.OK(c, reply)
}

// Greeting 个性化欢迎语
// GET /api/v1/chat/greeting
func (h *ChatHandler) Greeting(c *gin.Context) {
	var name string
	if p := currentSnapshot(c).Profile; p != nil {
		name = p.Name
	}
	response.OK(c, h.chatSvc.Greeting(name))
}
