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

// ── 科室模块业务错误 ──

var (
	ErrDepartmentNameBlank = errors.New("科室名称不能为空")
)

// DepartmentService 科室业务接口
type DepartmentService interface {
	Create(ctx context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error)
	List(ctx context.Context) ([]dto.DepartmentDetailResponse, error)
	// Delete 无条件删除，引用该科室的医生 department_id 置空
	Delete(ctx context.Context, id string, callerID string) (*dto.DeleteDepartmentResponse, error)
}

type departmentService struct {
	repo     *repository.Repository
	profiles ProfileInvalidator
	logger   *zap.Logger
}

// NewDepartmentService 创建 DepartmentService 实例
func NewDepartmentService(repo *repository.Repository, profiles ProfileInvalidator, logger *zap.Logger) DepartmentService {
	return &departmentService{repo: repo, profiles: profiles, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *departmentService) Create(ctx context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrDepartmentNameBlank
	}

	// 允许重名
	dept := &model.Department{Name: name}
	dept.CreatedBy = &callerID
	dept.UpdatedBy = &callerID

	if err := s.repo.Department.Create(ctx, dept); err != nil {
		s.logger.Error("创建科室失败", zap.Error(err))
		return nil, err
	}

	resp := toDepartmentDetailResponse(dept)
	return &resp, nil
}

// ────────────────────── List ──────────────────────

func (s *departmentService) List(ctx context.Context) ([]dto.DepartmentDetailResponse, error) {
	depts, err := s.repo.Department.List(ctx)
	if err != nil {
		s.logger.Error("列出科室失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.DepartmentDetailResponse, 0, len(depts))
	for i := range depts {
		result = append(result, toDepartmentDetailResponse(&depts[i]))
	}
	return result, nil
}

// ────────────────────── Delete ──────────────────────

func (s *departmentService) Delete(ctx context.Context, id string, callerID string) (*dto.DeleteDepartmentResponse, error) {
	var detached []string

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Department.GetByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDepartmentNotFound
			}
			return err
		}

		if _, err := tx.Department.Delete(ctx, id, callerID); err != nil {
			return err
		}

		ids, err := tx.User.DetachDepartment(ctx, id)
		if err != nil {
			return err
		}
		detached = ids
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrDepartmentNotFound) {
			s.logger.Error("删除科室失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	for _, uid := range detached {
		s.profiles.Invalidate(ctx, uid)
	}

	s.logger.Info("科室已删除",
		zap.String("id", id),
		zap.String("by", callerID),
		zap.Int("doctors_detached", len(detached)),
	)

	return &dto.DeleteDepartmentResponse{ID: id, DoctorsDetached: int64(len(detached))}, nil
}

// ── 内部辅助方法 ──

func toDepartmentDetailResponse(dept *model.Department) dto.DepartmentDetailResponse {
	return dto.DepartmentDetailResponse{
		ID:        dept.DepartmentID,
		Name:      dept.Name,
		CreatedAt: dept.CreatedAt.Format(model.TimestampLayout),
	}
}
