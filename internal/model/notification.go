package model

import "time"

// 通知类型
const (
	NotificationDoctorApproved = "doctor_approved"
	NotificationDoctorRejected = "doctor_rejected"
	NotificationBookingCreated = "booking_created"
	NotificationBookingPatient = "booking_confirmed"
)

// Notification 通知消息表 — 对应 notifications
// 仅由生产方创建；本系统只负责把 is_read 置为 true
type Notification struct {
	NotificationID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	UserID         string     `gorm:"type:uuid;not null;index"                       json:"user_id"`
	Type           string     `gorm:"type:varchar(50);not null"                      json:"type"`
	Message        string     `gorm:"type:text;not null"                             json:"message"`
	IsRead         bool       `gorm:"not null;default:false"                         json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }
