package dto

// ── 出诊表模块 DTO ──

// DayQuery 按日期查询出诊表
type DayQuery struct {
	Date string `form:"date" binding:"required,isodate"`
}

// GenerateDayRequest 生成默认出诊表请求
type GenerateDayRequest struct {
	Date string `json:"date" binding:"required,isodate"`
}

// SlotResponse 时段
type SlotResponse struct {
	Index       int    `json:"index"`
	Time        string `json:"time"`
	Status      string `json:"status"`
	PatientID   string `json:"patient_id,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
}

// DayScheduleResponse 出诊表；Exists=false 表示当天尚未生成
type DayScheduleResponse struct {
	Exists   bool           `json:"exists"`
	DoctorID string         `json:"doctor_id"`
	Date     string         `json:"date"`
	Key      string         `json:"key,omitempty"`
	Version  int            `json:"version,omitempty"`
	Slots    []SlotResponse `json:"slots"`
}
