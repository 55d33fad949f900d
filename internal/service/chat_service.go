package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/internal/client/agent"
	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/pkg/metrics"
)

// ChatService 导诊对话业务接口
type ChatService interface {
	// Send 转发消息到导诊服务；上游失败时返回兜底回复而非错误
	Send(ctx context.Context, userID, message string) (*dto.ChatResponse, error)
	Greeting(name string) *dto.GreetingResponse
}

type chatService struct {
	agent   AgentClient
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewChatService 创建 ChatService 实例
func NewChatService(agentClient AgentClient, m *metrics.Collector, logger *zap.Logger) ChatService {
	return &chatService{agent: agentClient, metrics: m, logger: logger}
}

func (s *chatService) Send(ctx context.Context, userID, message string) (*dto.ChatResponse, error) {
	reply, err := s.agent.Send(ctx, message, userID)
	if err != nil {
		// 本地校验失败直接返回，不计入上游调用
		if errors.Is(err, agent.ErrUnauthenticated) || errors.Is(err, agent.ErrEmptyMessage) {
			return nil, err
		}

		result := "error"
		if errors.Is(err, agent.ErrAgentUnavailable) {
			result = "open"
		}
		s.metrics.AgentCalled(result)
		s.logger.Warn("导诊服务调用失败，返回兜底回复", zap.String("user_id", userID), zap.Error(err))
		return &dto.ChatResponse{Reply: agent.FallbackReply, Fallback: true}, nil
	}

	s.metrics.AgentCalled("ok")
	return &dto.ChatResponse{Reply: reply}, nil
}

func (s *chatService) Greeting(name string) *dto.GreetingResponse {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "there"
	}
	return &dto.GreetingResponse{
		Message: fmt.Sprintf("Hello %s! I am SmartOPDAgent. I can help you book appointments, suggest doctors, and guide you through the hospital OPD. What brings you here today?", name),
	}
}
