package model

import "time"

// Feedback 患者反馈表 — 对应 feedback
type Feedback struct {
	FeedbackID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"feedback_id"`
	UserID     string    `gorm:"type:uuid;not null"                             json:"user_id"`
	DoctorID   *string   `gorm:"type:uuid"                                      json:"doctor_id,omitempty"`
	Text       string    `gorm:"type:text;not null"                             json:"text"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (Feedback) TableName() string { return "feedback" }
