package model

// 预约状态
const (
	BookingUpcoming  = "upcoming"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

// Booking 预约记录表 — 对应 bookings
// 与对应时段的 available → booked 迁移在同一事务中创建
type Booking struct {
	BookingID       string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"booking_id"`
	PatientID       string `gorm:"type:uuid;not null;index"                       json:"patient_id"`
	PatientName     string `gorm:"type:varchar(100);not null;default:''"          json:"patient_name"`
	DoctorID        string `gorm:"type:uuid;not null"                             json:"doctor_id"`
	DoctorName      string `gorm:"type:varchar(100);not null;default:''"          json:"doctor_name"`
	SlotID          string `gorm:"type:uuid;not null"                             json:"slot_id"`
	AppointmentDate string `gorm:"type:varchar(10);not null"                      json:"appointment_date"`
	AppointmentTime string `gorm:"type:varchar(5);not null"                       json:"appointment_time"`
	Status          string `gorm:"type:varchar(20);not null;default:'upcoming'"   json:"status"`
	BaseModel
}

// TableName 指定表名
func (Booking) TableName() string { return "bookings" }
