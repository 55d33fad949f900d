package dto

// ── 管理端 DTO ──

// DoctorListRequest 医生列表筛选
type DoctorListRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=pending approved rejected"`
}

// StatsResponse 仪表盘统计
type StatsResponse struct {
	Patients int64 `json:"patients"`
	Doctors  int64 `json:"doctors"`
	Pending  int64 `json:"pending"`
}

// FeedbackListRequest 反馈列表分页
type FeedbackListRequest struct {
	PaginationRequest
}
