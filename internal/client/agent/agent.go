// Package agent 转发聊天消息到外部智能导诊 webhook。
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/config"
)

var (
	ErrUnauthenticated  = errors.New("未登录，无法发送消息")
	ErrEmptyMessage     = errors.New("消息内容不能为空")
	ErrAgentStatus      = errors.New("导诊服务返回异常状态")
	ErrAgentProtocol    = errors.New("导诊服务响应格式无效，缺少 reply 字段")
	ErrAgentUnavailable = errors.New("导诊服务暂不可用")
)

// FallbackReply 导诊服务异常时展示给用户的兜底回复
const FallbackReply = "I'm sorry, I'm having trouble connecting to my brain right now. Please try again shortly."

// maxErrorBody 错误响应体最多读取的字节数
const maxErrorBody = 1 << 10

type request struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// Client 导诊 webhook 客户端
// 不做重试；熔断打开时直接失败
type Client struct {
	url     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[string]
	tracer  trace.Tracer
	logger  *zap.Logger
}

// New 创建客户端
func New(cfg *config.AgentConfig, logger *zap.Logger) *Client {
	return NewWithHTTPClient(cfg, &http.Client{Timeout: cfg.Timeout}, logger)
}

// NewWithHTTPClient 使用指定 http.Client 创建客户端
func NewWithHTTPClient(cfg *config.AgentConfig, hc *http.Client, logger *zap.Logger) *Client {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	st := gobreaker.Settings{
		Name:        "chat-agent",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("导诊服务熔断状态变化",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// 调用方取消不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &Client{
		url:     cfg.WebhookURL,
		http:    hc,
		breaker: gobreaker.NewCircuitBreaker[string](st),
		tracer:  otel.Tracer("smart-opd/agent"),
		logger:  logger,
	}
}

// Send 发送消息并返回导诊回复
// userID 为空时在发起网络请求前直接拒绝
func (c *Client) Send(ctx context.Context, message, userID string) (string, error) {
	if userID == "" {
		return "", ErrUnauthenticated
	}
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	ctx, span := c.tracer.Start(ctx, "agent.Send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	reply, err := c.breaker.Execute(func() (string, error) {
		return c.post(ctx, request{Message: message, UserID: userID})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return reply, nil
}

// State 熔断器当前状态
func (c *Client) State() string {
	return c.breaker.State().String()
}

func (c *Client) post(ctx context.Context, body request) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求导诊服务失败: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("导诊服务响应",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: status=%d body=%s", ErrAgentStatus, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var data map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAgentProtocol, err)
	}
	raw, ok := data["reply"]
	if !ok {
		return "", ErrAgentProtocol
	}
	// null 也视为缺少字符串 reply
	var reply *string
	if err := json.Unmarshal(raw, &reply); err != nil || reply == nil {
		return "", ErrAgentProtocol
	}
	return *reply, nil
}
