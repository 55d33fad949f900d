package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
	"github.com/arunvijo/SmartOPDAgent/internal/repository"
)

// ── 用户模块业务错误 ──

var (
	ErrDepartmentNotFound = errors.New("科室不存在")
	ErrNoProfileChanges   = errors.New("没有需要更新的字段")
)

// UserService 个人档案业务接口
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
}

type userService struct {
	repo     *repository.Repository
	profiles ProfileInvalidator
	logger   *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, profiles ProfileInvalidator, logger *zap.Logger) UserService {
	return &userService{repo: repo, profiles: profiles, logger: logger}
}

// ────────────────────── GetProfile ──────────────────────

func (s *userService) GetProfile(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// ────────────────────── UpdateProfile ──────────────────────

func (s *userService) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Age != nil {
		fields["age"] = *req.Age
	}
	if req.Insurance != nil {
		fields["insurance"] = strings.TrimSpace(*req.Insurance)
	}
	if req.AvatarURL != nil {
		fields["avatar_url"] = strings.TrimSpace(*req.AvatarURL)
	}
	if len(fields) == 0 {
		return nil, ErrNoProfileChanges
	}
	fields["updated_by"] = userID

	if err := s.repo.User.UpdateProfile(ctx, userID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("更新个人资料失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	s.profiles.Invalidate(ctx, userID)

	return s.GetProfile(ctx, userID)
}

// ── 内部辅助方法 ──

func toUserResponse(user *model.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:             user.UserID,
		Name:           user.Name,
		Email:          user.Email,
		Role:           user.Role,
		Specialization: user.Specialization,
		Age:            user.Age,
		Insurance:      user.Insurance,
		AvatarURL:      user.AvatarURL,
	}
	if user.Role == model.RoleDoctor {
		resp.Status = user.EffectiveStatus()
	}
	if user.Department != nil {
		resp.Department = &dto.DepartmentResponse{
			ID:   user.Department.DepartmentID,
			Name: user.Department.Name,
		}
	} else if user.DepartmentID != nil {
		resp.Department = &dto.DepartmentResponse{ID: *user.DepartmentID}
	}
	if !user.CreatedAt.IsZero() {
		resp.CreatedAt = user.CreatedAt.Format(model.TimestampLayout)
	}
	return resp
}
