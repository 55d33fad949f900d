package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/config"
	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
	"github.com/arunvijo/SmartOPDAgent/internal/repository"
	pkgerrors "github.com/arunvijo/SmartOPDAgent/pkg/errors"
	"github.com/arunvijo/SmartOPDAgent/pkg/metrics"
)

// ── 出诊表模块业务错误 ──

var (
	ErrDayScheduleExists   = errors.New("该日期的出诊表已存在")
	ErrDayScheduleNotFound = errors.New("该日期尚未生成出诊表")
	ErrSlotIndexOutOfRange = errors.New("时段序号超出范围")
	ErrSlotBooked          = errors.New("已预约的时段不能修改")
	ErrDateInPast          = errors.New("不能为过去的日期生成出诊表")
	ErrInvalidDate         = errors.New("日期格式无效，应为 YYYY-MM-DD")
	ErrDoctorNotFound      = errors.New("医生不存在或尚未通过审核")
)

// AvailabilityService 医生出诊表业务接口
type AvailabilityService interface {
	// LoadDay 医生查看自己某天的出诊表；未生成时返回 Exists=false
	LoadDay(ctx context.Context, doctorID, date string) (*dto.DayScheduleResponse, error)
	// PublicDay 患者查看医生某天的出诊表，隐去预约患者信息
	PublicDay(ctx context.Context, doctorID, date string) (*dto.DayScheduleResponse, error)
	// GenerateDay 按默认模板生成出诊表，已存在时不覆盖
	GenerateDay(ctx context.Context, doctorID, date string) (*dto.DayScheduleResponse, error)
	// ToggleSlot 在可预约与不可预约之间切换，已预约的时段拒绝修改
	ToggleSlot(ctx context.Context, doctorID, date string, index int) (*dto.DayScheduleResponse, error)
}

type availabilityService struct {
	template *config.SchedulerConfig
	repo     *repository.Repository
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

// NewAvailabilityService 创建 AvailabilityService 实例
func NewAvailabilityService(
	template *config.SchedulerConfig,
	repo *repository.Repository,
	m *metrics.Collector,
	logger *zap.Logger,
) AvailabilityService {
	return &availabilityService{
		template: template,
		repo:     repo,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// ────────────────────── LoadDay ──────────────────────

func (s *availabilityService) LoadDay(ctx context.Context, doctorID, date string) (*dto.DayScheduleResponse, error) {
	if _, err := parseISODate(date); err != nil {
		return nil, err
	}

	schedule, err := s.repo.Availability.GetByDoctorDate(ctx, doctorID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyDay(doctorID, date), nil
		}
		s.logger.Error("查询出诊表失败", zap.String("doctor_id", doctorID), zap.String("date", date), zap.Error(err))
		return nil, err
	}
	return toDayScheduleResponse(schedule, true), nil
}

// ────────────────────── PublicDay ──────────────────────

func (s *availabilityService) PublicDay(ctx context.Context, doctorID, date string) (*dto.DayScheduleResponse, error) {
	if _, err := parseISODate(date); err != nil {
		return nil, err
	}

	doctor, err := s.repo.User.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	if !doctor.IsApprovedDoctor() {
		return nil, ErrDoctorNotFound
	}

	schedule, err := s.repo.Availability.GetByDoctorDate(ctx, doctorID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyDay(doctorID, date), nil
		}
		s.logger.Error("查询出诊表失败", zap.String("doctor_id", doctorID), zap.String("date", date), zap.Error(err))
		return nil, err
	}
	return toDayScheduleResponse(schedule, false), nil
}

// ────────────────────── GenerateDay ──────────────────────

func (s *availabilityService) GenerateDay(ctx context.Context, doctorID, date string) (*dto.DayScheduleResponse, error) {
	day, err := parseISODate(date)
	if err != nil {
		return nil, err
	}
	yesterday := utcDay(s.now()).AddDate(0, 0, -1)
	if day.Before(yesterday) {
		return nil, ErrDateInPast
	}

	slots, err := model.NewDefaultSlots(s.template.DayStart, s.template.DayEnd, s.template.SlotMinutes)
	if err != nil {
		return nil, err
	}

	schedule := &model.DaySchedule{
		DoctorID:     doctorID,
		ScheduleDate: date,
		ScheduleKey:  model.ScheduleKey(doctorID, date),
		Slots:        slots,
	}
	schedule.Version = 1
	schedule.CreatedBy = &doctorID
	schedule.UpdatedBy = &doctorID

	if err := s.repo.Availability.CreateIfAbsent(ctx, schedule); err != nil {
		if errors.Is(err, repository.ErrDayScheduleConflict) {
			return nil, ErrDayScheduleExists
		}
		s.logger.Error("生成出诊表失败", zap.String("doctor_id", doctorID), zap.String("date", date), zap.Error(err))
		return nil, err
	}

	s.metrics.ScheduleGenerated()
	s.logger.Info("出诊表已生成",
		zap.String("key", schedule.ScheduleKey),
		zap.Int("slots", len(schedule.Slots)),
	)
	return toDayScheduleResponse(schedule, true), nil
}

// ────────────────────── ToggleSlot ──────────────────────

func (s *availabilityService) ToggleSlot(ctx context.Context, doctorID, date string, index int) (*dto.DayScheduleResponse, error) {
	if _, err := parseISODate(date); err != nil {
		return nil, err
	}

	schedule, err := s.repo.Availability.GetByDoctorDate(ctx, doctorID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDayScheduleNotFound
		}
		return nil, err
	}
	if index < 0 || index >= len(schedule.Slots) {
		return nil, ErrSlotIndexOutOfRange
	}

	slot := &schedule.Slots[index]
	from := slot.Status
	if slot.IsBooked() || !slot.Toggle() {
		s.metrics.SlotToggled("booked")
		return nil, ErrSlotBooked
	}

	if err := s.repo.Availability.SetSlotStatus(ctx, schedule, index, from, slot.Status); err != nil {
		if errors.Is(err, pkgerrors.ErrStaleSlotState) || errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.metrics.SlotToggled("conflict")
			s.logger.Warn("时段切换冲突",
				zap.String("key", schedule.ScheduleKey),
				zap.Int("index", index),
				zap.Error(err),
			)
			return nil, pkgerrors.ErrOptimisticLock
		}
		s.metrics.SlotToggled("error")
		s.logger.Error("时段切换失败", zap.String("key", schedule.ScheduleKey), zap.Error(err))
		return nil, err
	}

	s.metrics.SlotToggled(slot.Status)
	return toDayScheduleResponse(schedule, true), nil
}

// ── 内部辅助方法 ──

func parseISODate(date string) (time.Time, error) {
	day, err := time.Parse(model.ISODate, date)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return day, nil
}

// utcDay 取 t 所在的 UTC 日期零点；日期比较统一按 UTC
func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func emptyDay(doctorID, date string) *dto.DayScheduleResponse {
	return &dto.DayScheduleResponse{
		Exists:   false,
		DoctorID: doctorID,
		Date:     date,
		Slots:    []dto.SlotResponse{},
	}
}

// toDayScheduleResponse withPatient=false 时隐去预约患者信息
func toDayScheduleResponse(schedule *model.DaySchedule, withPatient bool) *dto.DayScheduleResponse {
	resp := &dto.DayScheduleResponse{
		Exists:   true,
		DoctorID: schedule.DoctorID,
		Date:     schedule.ScheduleDate,
		Key:      schedule.ScheduleKey,
		Version:  schedule.Version,
		Slots:    make([]dto.SlotResponse, 0, len(schedule.Slots)),
	}
	for _, slot := range schedule.Slots {
		item := dto.SlotResponse{
			Index:  slot.Position,
			Time:   slot.TimeLabel,
			Status: slot.Status,
		}
		if withPatient && slot.PatientID != nil {
			item.PatientID = *slot.PatientID
			item.PatientName = slot.PatientName
		}
		resp.Slots = append(resp.Slots, item)
	}
	return resp
}
