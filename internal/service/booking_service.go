package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
	"github.com/arunvijo/SmartOPDAgent/internal/repository"
	pkgerrors "github.com/arunvijo/SmartOPDAgent/pkg/errors"
	"github.com/arunvijo/SmartOPDAgent/pkg/events"
	"github.com/arunvijo/SmartOPDAgent/pkg/metrics"
)

// ── 预约模块业务错误 ──

var (
	ErrSlotNotAvailable = errors.New("该时段不可预约")
	ErrBookingForbidden = errors.New("仅患者可以预约")
	ErrBookingInPast    = errors.New("不能预约过去的日期")
)

// defaultUpcomingLimit 首页展示的即将到来的预约条数
const defaultUpcomingLimit = 3

// BookingService 预约业务接口
type BookingService interface {
	// Book 时段状态迁移、预约记录与双方通知在同一事务中写入
	Book(ctx context.Context, patientID string, req *dto.CreateBookingRequest) (*dto.BookingResponse, error)
	ListMine(ctx context.Context, patientID string) ([]dto.BookingResponse, error)
	ListUpcoming(ctx context.Context, patientID string, limit int) ([]dto.BookingResponse, error)
	Calendar(ctx context.Context, patientID string) (string, error)
}

type bookingService struct {
	repo         *repository.Repository
	notification NotificationService
	events       events.Publisher
	metrics      *metrics.Collector
	logger       *zap.Logger
	now          func() time.Time
}

// NewBookingService 创建 BookingService 实例
func NewBookingService(
	repo *repository.Repository,
	notification NotificationService,
	publisher events.Publisher,
	m *metrics.Collector,
	logger *zap.Logger,
) BookingService {
	return &bookingService{
		repo:         repo,
		notification: notification,
		events:       publisher,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// ────────────────────── Book ──────────────────────

func (s *bookingService) Book(ctx context.Context, patientID string, req *dto.CreateBookingRequest) (*dto.BookingResponse, error) {
	day, err := parseISODate(req.Date)
	if err != nil {
		return nil, err
	}
	if req.SlotIndex == nil {
		return nil, ErrSlotIndexOutOfRange
	}
	index := *req.SlotIndex

	if day.Before(utcDay(s.now())) {
		return nil, ErrBookingInPast
	}

	patient, err := s.repo.User.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if patient.Role != model.RolePatient {
		return nil, ErrBookingForbidden
	}

	doctor, err := s.repo.User.GetByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	if !doctor.IsApprovedDoctor() {
		return nil, ErrDoctorNotFound
	}

	var booking *model.Booking
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		schedule, err := tx.Availability.GetByDoctorDate(ctx, doctor.UserID, req.Date)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDayScheduleNotFound
			}
			return err
		}
		if index < 0 || index >= len(schedule.Slots) {
			return ErrSlotIndexOutOfRange
		}

		slot := schedule.Slots[index]
		if slot.Status != model.SlotAvailable {
			return ErrSlotNotAvailable
		}

		if err := tx.Availability.BookSlot(ctx, schedule, index, patient.UserID, patient.Name); err != nil {
			if errors.Is(err, pkgerrors.ErrStaleSlotState) {
				return ErrSlotNotAvailable
			}
			return err
		}

		booking = &model.Booking{
			PatientID:       patient.UserID,
			PatientName:     patient.Name,
			DoctorID:        doctor.UserID,
			DoctorName:      doctor.Name,
			SlotID:          slot.SlotID,
			AppointmentDate: req.Date,
			AppointmentTime: slot.TimeLabel,
			Status:          model.BookingUpcoming,
		}
		booking.CreatedBy = &patient.UserID
		booking.UpdatedBy = &patient.UserID
		if err := tx.Booking.Create(ctx, booking); err != nil {
			return err
		}

		when := req.Date + " " + slot.TimeLabel
		if err := tx.Notification.Create(ctx, &model.Notification{
			UserID:  doctor.UserID,
			Type:    model.NotificationBookingCreated,
			Message: fmt.Sprintf("New appointment booked by %s on %s.", displayName(patient.Name, "a patient"), when),
		}); err != nil {
			return err
		}
		return tx.Notification.Create(ctx, &model.Notification{
			UserID:  patient.UserID,
			Type:    model.NotificationBookingPatient,
			Message: fmt.Sprintf("Your appointment with Dr. %s on %s is confirmed.", displayName(doctor.Name, "your doctor"), when),
		})
	})
	if err != nil {
		if !isBookingRejection(err) {
			s.logger.Error("预约失败",
				zap.String("patient_id", patientID),
				zap.String("doctor_id", req.DoctorID),
				zap.String("date", req.Date),
				zap.Int("index", index),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.notification.Signal(ctx, doctor.UserID, patient.UserID)
	s.metrics.SlotBooked()
	s.metrics.NotificationSent(model.NotificationBookingCreated)
	s.metrics.NotificationSent(model.NotificationBookingPatient)
	s.events.Publish(ctx, events.New(events.TypeSlotBooked, model.ScheduleKey(doctor.UserID, req.Date), map[string]string{
		"booking_id": booking.BookingID,
		"doctor_id":  doctor.UserID,
		"patient_id": patient.UserID,
		"date":       req.Date,
		"time":       booking.AppointmentTime,
		"index":      strconv.Itoa(index),
	}))

	s.logger.Info("预约成功",
		zap.String("booking_id", booking.BookingID),
		zap.String("doctor_id", doctor.UserID),
		zap.String("date", req.Date),
		zap.String("time", booking.AppointmentTime),
	)

	resp := toBookingResponse(booking)
	return &resp, nil
}

// ────────────────────── 查询 ──────────────────────

func (s *bookingService) ListMine(ctx context.Context, patientID string) ([]dto.BookingResponse, error) {
	bookings, err := s.repo.Booking.ListByPatient(ctx, patientID, "", 0)
	if err != nil {
		s.logger.Error("查询预约失败", zap.String("patient_id", patientID), zap.Error(err))
		return nil, err
	}
	return toBookingResponses(bookings), nil
}

func (s *bookingService) ListUpcoming(ctx context.Context, patientID string, limit int) ([]dto.BookingResponse, error) {
	if limit <= 0 {
		limit = defaultUpcomingLimit
	}
	today := utcDay(s.now()).Format(model.ISODate)

	bookings, err := s.repo.Booking.ListByPatient(ctx, patientID, today, limit)
	if err != nil {
		s.logger.Error("查询即将到来的预约失败", zap.String("patient_id", patientID), zap.Error(err))
		return nil, err
	}
	return toBookingResponses(bookings), nil
}

func (s *bookingService) Calendar(ctx context.Context, patientID string) (string, error) {
	bookings, err := s.repo.Booking.ListByPatient(ctx, patientID, "", 0)
	if err != nil {
		s.logger.Error("查询预约失败", zap.String("patient_id", patientID), zap.Error(err))
		return "", err
	}
	return BuildBookingCalendar(bookings, s.now())
}

// ── 内部辅助方法 ──

func isBookingRejection(err error) bool {
	return errors.Is(err, ErrDayScheduleNotFound) ||
		errors.Is(err, ErrSlotIndexOutOfRange) ||
		errors.Is(err, ErrSlotNotAvailable) ||
		errors.Is(err, pkgerrors.ErrOptimisticLock)
}

func toBookingResponses(bookings []model.Booking) []dto.BookingResponse {
	result := make([]dto.BookingResponse, 0, len(bookings))
	for i := range bookings {
		result = append(result, toBookingResponse(&bookings[i]))
	}
	return result
}

func toBookingResponse(b *model.Booking) dto.BookingResponse {
	return dto.BookingResponse{
		ID:          b.BookingID,
		DoctorID:    b.DoctorID,
		DoctorName:  b.DoctorName,
		PatientID:   b.PatientID,
		PatientName: b.PatientName,
		Date:        b.AppointmentDate,
		Time:        b.AppointmentTime,
		Status:      b.Status,
		CreatedAt:   b.CreatedAt.Format(model.TimestampLayout),
	}
}
