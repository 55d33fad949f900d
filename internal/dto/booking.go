package dto

// ── 预约模块 DTO ──

// CreateBookingRequest 预约请求
type CreateBookingRequest struct {
	DoctorID  string `json:"doctor_id"  binding:"required,uuid"`
	Date      string `json:"date"       binding:"required,isodate"`
	SlotIndex *int   `json:"slot_index" binding:"required,min=0"`
}

// UpcomingQuery 即将到来的预约查询参数
type UpcomingQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=20"`
}

// BookingResponse 预约记录
type BookingResponse struct {
	ID          string `json:"id"`
	DoctorID    string `json:"doctor_id"`
	DoctorName  string `json:"doctor_name"`
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	Date        string `json:"appointment_date"`
	Time        string `json:"appointment_time"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}
