package model

import (
	"fmt"
	"time"
)

// 时段状态
const (
	SlotAvailable   = "available"
	SlotUnavailable = "unavailable"
	SlotBooked      = "booked"
)

// DaySchedule 医生单日出诊表 — 对应 day_schedules
// (doctor_id, schedule_date) 唯一；Slots 生成后长度与时间标签固定
type DaySchedule struct {
	DayScheduleID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"             json:"day_schedule_id"`
	DoctorID      string `gorm:"type:uuid;not null;uniqueIndex:uk_day_schedule_doctor_date" json:"doctor_id"`
	ScheduleDate  string `gorm:"type:varchar(10);not null;uniqueIndex:uk_day_schedule_doctor_date" json:"date"`
	ScheduleKey   string `gorm:"type:varchar(64);not null;uniqueIndex"                      json:"schedule_key"`
	VersionedModel

	Slots []ScheduleSlot `gorm:"foreignKey:DayScheduleID;references:DayScheduleID" json:"slots"`
}

// TableName 指定表名
func (DaySchedule) TableName() string { return "day_schedules" }

// ScheduleSlot 出诊时段 — 对应 schedule_slots
// Position 从 0 开始，与时间先后一致
type ScheduleSlot struct {
	SlotID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"          json:"slot_id"`
	DayScheduleID string    `gorm:"type:uuid;not null;uniqueIndex:uk_slot_schedule_position" json:"-"`
	Position      int       `gorm:"type:smallint;not null;uniqueIndex:uk_slot_schedule_position" json:"index"`
	TimeLabel     string    `gorm:"type:varchar(5);not null"                                json:"time"`
	Status        string    `gorm:"type:varchar(20);not null;default:'available'"           json:"status"`
	PatientID     *string   `gorm:"type:uuid"                                               json:"patient_id,omitempty"`
	PatientName   string    `gorm:"type:varchar(100);not null;default:''"                   json:"patient_name,omitempty"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                      json:"updated_at"`
}

// TableName 指定表名
func (ScheduleSlot) TableName() string { return "schedule_slots" }

// ScheduleKey 生成出诊表业务键 {doctorId}_{date}
func ScheduleKey(doctorID, date string) string {
	return doctorID + "_" + date
}

// NewDefaultSlots 按 [start, end) 与步长生成全部可预约的时段
func NewDefaultSlots(start, end string, stepMinutes int) ([]ScheduleSlot, error) {
	if stepMinutes <= 0 {
		return nil, fmt.Errorf("时段长度必须大于 0: %d", stepMinutes)
	}
	from, err := time.Parse("15:04", start)
	if err != nil {
		return nil, fmt.Errorf("起始时间格式无效: %q", start)
	}
	to, err := time.Parse("15:04", end)
	if err != nil {
		return nil, fmt.Errorf("结束时间格式无效: %q", end)
	}
	if !to.After(from) {
		return nil, fmt.Errorf("结束时间必须晚于起始时间: %s-%s", start, end)
	}

	step := time.Duration(stepMinutes) * time.Minute
	slots := make([]ScheduleSlot, 0, int(to.Sub(from)/step))
	for t, i := from, 0; t.Before(to); t, i = t.Add(step), i+1 {
		slots = append(slots, ScheduleSlot{
			Position:  i,
			TimeLabel: t.Format("15:04"),
			Status:    SlotAvailable,
		})
	}
	return slots, nil
}

// Toggle 在 available 与 unavailable 之间切换；已预约时段不变并返回 false
func (s *ScheduleSlot) Toggle() bool {
	switch s.Status {
	case SlotAvailable:
		s.Status = SlotUnavailable
	case SlotUnavailable:
		s.Status = SlotAvailable
	default:
		return false
	}
	return true
}

// Book 将可预约时段标记为已预约；其他状态返回 false
func (s *ScheduleSlot) Book(patientID, patientName string) bool {
	if s.Status != SlotAvailable {
		return false
	}
	s.Status = SlotBooked
	s.PatientID = &patientID
	s.PatientName = patientName
	return true
}

// IsBooked 是否已被预约
func (s *ScheduleSlot) IsBooked() bool { return s.Status == SlotBooked }
