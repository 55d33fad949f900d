// Package otp 调用外部邮件验证码 webhook。
package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/config"
)

const maxErrorBody = 1 << 10

// Result webhook 返回结果
// 传输、状态码、解析失败都折叠为 Success=false 且 Message 为错误描述
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func failed(err error) Result {
	return Result{Success: false, Message: err.Error()}
}

// Client 验证码 webhook 客户端
type Client struct {
	sendURL   string
	verifyURL string
	http      *http.Client
	tracer    trace.Tracer
	logger    *zap.Logger
}

// New 创建客户端
func New(cfg *config.OTPConfig, logger *zap.Logger) *Client {
	return &Client{
		sendURL:   cfg.SendURL,
		verifyURL: cfg.VerifyURL,
		http:      &http.Client{Timeout: cfg.Timeout},
		tracer:    otel.Tracer("smart-opd/otp"),
		logger:    logger,
	}
}

// Send 向邮箱发送验证码
func (c *Client) Send(ctx context.Context, email string) Result {
	return c.call(ctx, "otp.Send", c.sendURL, map[string]string{"email": email})
}

// Verify 校验验证码
func (c *Client) Verify(ctx context.Context, email, code string) Result {
	return c.call(ctx, "otp.Verify", c.verifyURL, map[string]string{"email": email, "otp": code})
}

func (c *Client) call(ctx context.Context, op, url string, body map[string]string) Result {
	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	res, err := c.post(ctx, url, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("验证码服务调用失败", zap.String("op", op), zap.Error(err))
		return failed(err)
	}
	return res
}

func (c *Client) post(ctx context.Context, url string, body map[string]string) (Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("请求验证码服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Result{}, fmt.Errorf("验证码服务返回状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("解析验证码服务响应失败: %w", err)
	}
	return res, nil
}
