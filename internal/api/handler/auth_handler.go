package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/service"
	"github.com/arunvijo/SmartOPDAgent/pkg/jwt"
	"github.com/arunvijo/SmartOPDAgent/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Session 当前身份快照，未登录也返回 200
// GET /api/v1/auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	response.OK(c, h.authSvc.Session(currentSnapshot(c)))
}

// Navigation 页面访问决策
// GET /api/v1/navigation?path=/doctor/dashboard
func (h *AuthHandler) Navigation(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		response.BadRequest(c, 10001, "path 不能为空")
		return
	}
	response.OK(c, h.authSvc.Navigate(currentSnapshot(c), path))
}

// SendOTP 发送注册验证码
// POST /api/v1/auth/otp/send
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req dto.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.SendOTP(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, result)
}

// Register 注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.Created(c, result)
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, result)
}

// RefreshToken 刷新 Token
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, result)
}

// Logout 注销当前 access token，请求体可选附带 refresh token 一并注销
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// 请求体可为空
	_ = c.ShouldBindJSON(&req)

	snap := currentSnapshot(c)
	claims := jwt.RevocationClaims(userID, snap.TokenID, snap.ExpiresIn)
	if err := h.authSvc.Logout(c.Request.Context(), claims, req.RefreshToken); err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, nil)
}

// handleAuthError 统一处理认证模块业务错误
func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, 11001, "invalid email or password")
	case errors.Is(err, service.ErrEmailExists):
		response.Conflict(c, 11002, "该邮箱已注册")
	case errors.Is(err, service.ErrDoctorFieldsRequired):
		response.BadRequest(c, 11003, "医生注册需选择科室并填写专长")
	case errors.Is(err, service.ErrDepartmentNotFound):
		response.BadRequest(c, 11004, "科室不存在")
	case errors.Is(err, service.ErrRefreshTokenInvalid):
		response.Unauthorized(c, 11005, "refresh token 无效或已注销")
	case errors.Is(err, service.ErrUserNotFound):
		response.Unauthorized(c, 11006, "用户不存在")
	case errors.Is(err, service.ErrOTPInvalid):
		response.BadRequest(c, 17001, "验证码无效或已过期")
	case errors.Is(err, service.ErrOTPRateLimited):
		response.Error(c, http.StatusTooManyRequests, 17002, "验证码发送过于频繁，请稍后再试")
	default:
		response.InternalError(c)
	}
}
