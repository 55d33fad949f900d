package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arunvijo/SmartOPDAgent/internal/model"
	pkgerrors "github.com/arunvijo/SmartOPDAgent/pkg/errors"
)

// ErrDayScheduleConflict 同一医生同一天的出诊表已存在
var ErrDayScheduleConflict = errors.New("出诊表已存在")

// AvailabilityRepository 出诊表数据访问接口
type AvailabilityRepository interface {
	// GetByDoctorDate 查询出诊表及其全部时段（按 position 升序）
	GetByDoctorDate(ctx context.Context, doctorID, date string) (*model.DaySchedule, error)
	// CreateIfAbsent 仅在记录不存在时写入；已存在返回 ErrDayScheduleConflict
	CreateIfAbsent(ctx context.Context, schedule *model.DaySchedule) error
	// SetSlotStatus 条件更新：仅当时段当前状态为 from 时改为 to，并递增出诊表版本
	SetSlotStatus(ctx context.Context, schedule *model.DaySchedule, position int, from, to string) error
	// BookSlot 条件更新：可预约时段改为已预约并写入患者信息，并递增出诊表版本
	BookSlot(ctx context.Context, schedule *model.DaySchedule, position int, patientID, patientName string) error
}

type availabilityRepo struct {
	db *gorm.DB
}

// NewAvailabilityRepo 创建 AvailabilityRepository 实例
func NewAvailabilityRepo(db *gorm.DB) AvailabilityRepository {
	return &availabilityRepo{db: db}
}

func (r *availabilityRepo) GetByDoctorDate(ctx context.Context, doctorID, date string) (*model.DaySchedule, error) {
	var schedule model.DaySchedule
	err := r.db.WithContext(ctx).
		Preload("Slots", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("doctor_id = ? AND schedule_date = ?", doctorID, date).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *availabilityRepo) CreateIfAbsent(ctx context.Context, schedule *model.DaySchedule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slots := schedule.Slots
		schedule.Slots = nil

		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "doctor_id"}, {Name: "schedule_date"}},
			DoNothing: true,
		}).Create(schedule)
		if result.Error != nil {
			schedule.Slots = slots
			return result.Error
		}
		if result.RowsAffected == 0 {
			schedule.Slots = slots
			return ErrDayScheduleConflict
		}

		for i := range slots {
			slots[i].DayScheduleID = schedule.DayScheduleID
		}
		if len(slots) > 0 {
			if err := tx.Create(&slots).Error; err != nil {
				return err
			}
		}
		schedule.Slots = slots
		return nil
	})
}

func (r *availabilityRepo) SetSlotStatus(ctx context.Context, schedule *model.DaySchedule, position int, from, to string) error {
	return r.casSlot(ctx, schedule, position, from, map[string]interface{}{
		"status":     to,
		"updated_at": gorm.Expr("NOW()"),
	})
}

func (r *availabilityRepo) BookSlot(ctx context.Context, schedule *model.DaySchedule, position int, patientID, patientName string) error {
	return r.casSlot(ctx, schedule, position, model.SlotAvailable, map[string]interface{}{
		"status":       model.SlotBooked,
		"patient_id":   patientID,
		"patient_name": patientName,
		"updated_at":   gorm.Expr("NOW()"),
	})
}

// casSlot 时段条件更新 + 出诊表版本递增，二者在同一事务内
func (r *availabilityRepo) casSlot(ctx context.Context, schedule *model.DaySchedule, position int, from string, fields map[string]interface{}) error {
	oldVersion := schedule.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.ScheduleSlot{}).
			Where("day_schedule_id = ? AND position = ? AND status = ?", schedule.DayScheduleID, position, from).
			Updates(fields)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrStaleSlotState
		}

		result = tx.Model(&model.DaySchedule{}).
			Where("day_schedule_id = ? AND version = ?", schedule.DayScheduleID, oldVersion).
			Updates(map[string]interface{}{
				"version":    oldVersion + 1,
				"updated_at": gorm.Expr("NOW()"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}
		return nil
	})
	if err != nil {
		return err
	}
	schedule.Version = oldVersion + 1
	return nil
}
