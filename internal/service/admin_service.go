package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
	"github.com/arunvijo/SmartOPDAgent/internal/repository"
	"github.com/arunvijo/SmartOPDAgent/pkg/events"
	"github.com/arunvijo/SmartOPDAgent/pkg/metrics"
)

// ── 管理模块业务错误 ──

var (
	ErrNotADoctor        = errors.New("该用户不是医生")
	ErrDoctorStatusFinal = errors.New("医生审核结果已确定，不能更改")
)

const (
	unknownPatient = "Unknown Patient"
	unknownDoctor  = "Unknown Doctor"
)

// AdminService 管理端业务接口
type AdminService interface {
	ListDoctors(ctx context.Context, status string) ([]dto.UserResponse, error)
	// Approve 待审核 → 已通过；重复通过为空操作
	Approve(ctx context.Context, doctorID, callerID string) (*dto.UserResponse, error)
	// Reject 待审核 → 已拒绝；重复拒绝为空操作
	Reject(ctx context.Context, doctorID, callerID string) (*dto.UserResponse, error)
	ListUsers(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	ListFeedback(ctx context.Context, req *dto.FeedbackListRequest) ([]dto.FeedbackResponse, int64, error)
	Stats(ctx context.Context) (*dto.StatsResponse, error)
}

type adminService struct {
	repo         *repository.Repository
	notification NotificationService
	profiles     ProfileInvalidator
	events       events.Publisher
	metrics      *metrics.Collector
	logger       *zap.Logger
}

// NewAdminService 创建 AdminService 实例
func NewAdminService(
	repo *repository.Repository,
	notification NotificationService,
	profiles ProfileInvalidator,
	publisher events.Publisher,
	m *metrics.Collector,
	logger *zap.Logger,
) AdminService {
	return &adminService{
		repo:         repo,
		notification: notification,
		profiles:     profiles,
		events:       publisher,
		metrics:      m,
		logger:       logger,
	}
}

// ────────────────────── 医生审核 ──────────────────────

func (s *adminService) ListDoctors(ctx context.Context, status string) ([]dto.UserResponse, error) {
	users, _, err := s.repo.User.List(ctx, repository.UserFilter{Role: model.RoleDoctor, Status: status}, 0, 0)
	if err != nil {
		s.logger.Error("查询医生列表失败", zap.Error(err))
		return nil, err
	}
	return toUserResponses(users), nil
}

func (s *adminService) Approve(ctx context.Context, doctorID, callerID string) (*dto.UserResponse, error) {
	return s.decide(ctx, doctorID, callerID, model.DoctorStatusApproved)
}

func (s *adminService) Reject(ctx context.Context, doctorID, callerID string) (*dto.UserResponse, error) {
	return s.decide(ctx, doctorID, callerID, model.DoctorStatusRejected)
}

// decide 审核状态只允许 pending → approved|rejected 迁移一次
func (s *adminService) decide(ctx context.Context, doctorID, callerID, target string) (*dto.UserResponse, error) {
	doctor, err := s.getDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	switch doctor.EffectiveStatus() {
	case target:
		resp := toUserResponse(doctor)
		return &resp, nil
	case model.DoctorStatusPending:
	default:
		return nil, ErrDoctorStatusFinal
	}

	affected, err := s.repo.User.DecideDoctorStatus(ctx, doctorID, target, callerID)
	if err != nil {
		s.logger.Error("更新医生审核状态失败", zap.String("doctor_id", doctorID), zap.Error(err))
		return nil, err
	}
	if affected == 0 {
		// 并发审核：以已落库的结果为准
		current, err := s.getDoctor(ctx, doctorID)
		if err != nil {
			return nil, err
		}
		if current.EffectiveStatus() != target {
			return nil, ErrDoctorStatusFinal
		}
		resp := toUserResponse(current)
		return &resp, nil
	}

	s.profiles.Invalidate(ctx, doctorID)
	s.metrics.Moderated(target)

	kind, message, eventType := model.NotificationDoctorApproved,
		"Your account has been approved. You can now access the doctor dashboard.",
		events.TypeDoctorApproved
	if target == model.DoctorStatusRejected {
		kind, message, eventType = model.NotificationDoctorRejected,
			"Your account application was rejected. Please contact the hospital administration.",
			events.TypeDoctorRejected
	}
	if err := s.notification.Notify(ctx, doctorID, kind, message); err != nil {
		// 审核结果已生效，通知写入失败只记录
		s.logger.Warn("审核通知写入失败", zap.String("doctor_id", doctorID), zap.Error(err))
	}
	s.events.Publish(ctx, events.New(eventType, doctorID, map[string]string{
		"doctor_id":  doctorID,
		"email":      doctor.Email,
		"decided_by": callerID,
	}))

	s.logger.Info("医生审核完成",
		zap.String("doctor_id", doctorID),
		zap.String("status", target),
		zap.String("by", callerID),
	)

	doctor.Status = &target
	resp := toUserResponse(doctor)
	return &resp, nil
}

// ────────────────────── 用户与反馈 ──────────────────────

func (s *adminService) ListUsers(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	filter := repository.UserFilter{Keyword: req.Keyword, Role: req.Role}
	users, total, err := s.repo.User.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, 0, err
	}
	return toUserResponses(users), total, nil
}

func (s *adminService) ListFeedback(ctx context.Context, req *dto.FeedbackListRequest) ([]dto.FeedbackResponse, int64, error) {
	items, total, err := s.repo.Feedback.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询反馈列表失败", zap.Error(err))
		return nil, 0, err
	}

	ids := make([]string, 0, len(items)*2)
	for _, f := range items {
		ids = append(ids, f.UserID)
		if f.DoctorID != nil {
			ids = append(ids, *f.DoctorID)
		}
	}
	names, err := s.repo.User.NamesByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("解析反馈用户名失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.FeedbackResponse, 0, len(items))
	for i := range items {
		f := &items[i]
		resp := toFeedbackResponse(f)
		resp.PatientName = displayName(names[f.UserID], unknownPatient)
		if f.DoctorID != nil {
			resp.DoctorName = displayName(names[*f.DoctorID], unknownDoctor)
		}
		result = append(result, resp)
	}
	return result, total, nil
}

// ────────────────────── Stats ──────────────────────

func (s *adminService) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	patients, err := s.repo.User.Count(ctx, model.RolePatient, "")
	if err != nil {
		return nil, err
	}
	doctors, err := s.repo.User.Count(ctx, model.RoleDoctor, "")
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.User.Count(ctx, model.RoleDoctor, model.DoctorStatusPending)
	if err != nil {
		return nil, err
	}
	return &dto.StatsResponse{Patients: patients, Doctors: doctors, Pending: pending}, nil
}

// ── 内部辅助方法 ──

func (s *adminService) getDoctor(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Role != model.RoleDoctor {
		return nil, ErrNotADoctor
	}
	return user, nil
}

func toUserResponses(users []model.User) []dto.UserResponse {
	result := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, toUserResponse(&users[i]))
	}
	return result
}
