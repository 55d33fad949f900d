package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/internal/model"
)

// BookingRepository 预约记录数据访问接口
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	// ListByPatient 按就诊日期倒序；fromDate 非空时只返回该日期及之后的记录；limit<=0 不限制
	ListByPatient(ctx context.Context, patientID, fromDate string, limit int) ([]model.Booking, error)
}

type bookingRepo struct {
	db *gorm.DB
}

// NewBookingRepo 创建 BookingRepository 实例
func NewBookingRepo(db *gorm.DB) BookingRepository {
	return &bookingRepo{db: db}
}

func (r *bookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *bookingRepo) ListByPatient(ctx context.Context, patientID, fromDate string, limit int) ([]model.Booking, error) {
	var bookings []model.Booking
	db := r.db.WithContext(ctx).Where("patient_id = ?", patientID)
	if fromDate != "" {
		db = db.Where("appointment_date >= ? AND status = ?", fromDate, model.BookingUpcoming).
			Order("appointment_date ASC, appointment_time ASC")
	} else {
		db = db.Order("appointment_date DESC, appointment_time DESC")
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&bookings).Error
	return bookings, err
}
