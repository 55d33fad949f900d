package dto

// ── 反馈模块 DTO ──

// SubmitFeedbackRequest 提交反馈
type SubmitFeedbackRequest struct {
	Text     string `json:"text"      binding:"max=2000"`
	DoctorID string `json:"doctor_id" binding:"omitempty,uuid"`
}

// FeedbackResponse 反馈（管理端展示时解析患者与医生姓名）
type FeedbackResponse struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name,omitempty"`
	DoctorID    string `json:"doctor_id,omitempty"`
	DoctorName  string `json:"doctor_name,omitempty"`
	CreatedAt   string `json:"created_at"`
}
