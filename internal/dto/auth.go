package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest 注册请求；医生需同时提供科室与专长
type RegisterRequest struct {
	Email          string `json:"email"          binding:"required,email"`
	Password       string `json:"password"       binding:"required,min=6,max=72"`
	Name           string `json:"name"           binding:"omitempty,max=100"`
	Role           string `json:"role"           binding:"required,oneof=patient doctor"`
	DepartmentID   string `json:"department_id"  binding:"omitempty,uuid"`
	Specialization string `json:"specialization" binding:"omitempty,max=100"`
	OTP            string `json:"otp"            binding:"required,min=4,max=8"`
}

// SendOTPRequest 发送验证码请求
type SendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}
