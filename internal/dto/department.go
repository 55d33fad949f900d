package dto

// ── 科室模块 DTO ──

// CreateDepartmentRequest 创建科室请求
// 名称空白由业务层拒绝，此处不做 required 校验
type CreateDepartmentRequest struct {
	Name string `json:"name" binding:"max=100"`
}

// DepartmentDetailResponse 科室详细信息
type DepartmentDetailResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// DeleteDepartmentResponse 删除科室结果
type DeleteDepartmentResponse struct {
	ID              string `json:"id"`
	DoctorsDetached int64  `json:"doctors_detached"`
}
