package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/internal/model"
)

// DepartmentRepository 科室数据访问接口
type DepartmentRepository interface {
	Create(ctx context.Context, dept *model.Department) error
	GetByID(ctx context.Context, id string) (*model.Department, error)
	List(ctx context.Context) ([]model.Department, error)
	Delete(ctx context.Context, id string, deletedBy string) (int64, error)
}

// departmentRepo DepartmentRepository 的 GORM 实现
type departmentRepo struct {
	db *gorm.DB
}

// NewDepartmentRepo 创建 DepartmentRepository 实例
func NewDepartmentRepo(db *gorm.DB) DepartmentRepository {
	return &departmentRepo{db: db}
}

func (r *departmentRepo) Create(ctx context.Context, dept *model.Department) error {
	return r.db.WithContext(ctx).Create(dept).Error
}

func (r *departmentRepo) GetByID(ctx context.Context, id string) (*model.Department, error) {
	var dept model.Department
	err := r.db.WithContext(ctx).
		Where("department_id = ?", id).
		First(&dept).Error
	if err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepo) List(ctx context.Context) ([]model.Department, error) {
	var depts []model.Department
	err := r.db.WithContext(ctx).
		Order("name ASC, created_at ASC").
		Find(&depts).Error
	return depts, err
}

// Delete 软删除；已删除的记录不计入受影响行数
func (r *departmentRepo) Delete(ctx context.Context, id string, deletedBy string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Department{}).
		Where("department_id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		})
	return result.RowsAffected, result.Error
}
