package dto

// ── 认证模块响应 ──

// TokenResponse Token 对响应
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // Access Token 有效期（秒）
	User         UserResponse `json:"user"`
	Next         string       `json:"next,omitempty"` // 登录/注册后前端应跳转的页面
}

// OTPResponse 验证码 webhook 结果
type OTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionResponse 当前身份快照
type SessionResponse struct {
	State   string        `json:"state"`
	Profile *UserResponse `json:"profile"`
}

// NavigationResponse 页面访问决策
type NavigationResponse struct {
	Path    string `json:"path"`
	Group   string `json:"group"`
	Outcome string `json:"outcome"`
	Target  string `json:"target,omitempty"`
}

// ── 用户模块响应 ──

// UserResponse 用户档案（脱敏）
type UserResponse struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Email          string              `json:"email"`
	Role           string              `json:"role"`
	Status         string              `json:"status,omitempty"`
	Department     *DepartmentResponse `json:"department,omitempty"`
	Specialization string              `json:"specialization,omitempty"`
	Age            *int                `json:"age,omitempty"`
	Insurance      string              `json:"insurance,omitempty"`
	AvatarURL      string              `json:"avatar_url,omitempty"`
	CreatedAt      string              `json:"created_at,omitempty"`
}

// DepartmentResponse 科室简要信息
type DepartmentResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
