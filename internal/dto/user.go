package dto

// ── 用户模块 DTO ──

// UpdateProfileRequest 更新个人资料请求
type UpdateProfileRequest struct {
	Name      *string `json:"name"       binding:"omitempty,max=100"`
	Age       *int    `json:"age"        binding:"omitempty,min=0,max=150"`
	Insurance *string `json:"insurance"  binding:"omitempty,max=100"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,url,max=500"`
}

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Keyword string `form:"keyword" binding:"omitempty,max=100"`
	Role    string `form:"role"    binding:"omitempty,oneof=patient doctor admin"`
}
