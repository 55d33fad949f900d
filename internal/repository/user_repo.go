package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/internal/model"
)

// UserFilter 用户列表筛选条件
type UserFilter struct {
	Keyword string // 姓名或邮箱子串
	Role    string
	Status  string
}

// UserRepository 用户档案数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, fields map[string]interface{}) error
	// DecideDoctorStatus 仅当医生仍处于待审核时写入新状态，返回受影响行数
	DecideDoctorStatus(ctx context.Context, id, status, decidedBy string) (int64, error)
	List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error)
	ListAll(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context, role, status string) (int64, error)
	// DetachDepartment 将引用该科室的用户 department_id 置空，返回受影响的用户 ID
	DetachDepartment(ctx context.Context, departmentID string) ([]string, error)
	NamesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Department").
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepo) DecideDoctorStatus(ctx context.Context, id, status, decidedBy string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ? AND role = ? AND (status IS NULL OR status = ?)", id, model.RoleDoctor, model.DoctorStatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_by": decidedBy,
			"updated_at": gorm.Expr("NOW()"),
		})
	return result.RowsAffected, result.Error
}

func (r *userRepo) List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.db.WithContext(ctx).Model(&model.User{})
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		db = db.Where("name ILIKE ? OR email ILIKE ?", like, like)
	}
	if filter.Role != "" {
		db = db.Where("role = ?", filter.Role)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := db.Preload("Department").Order("created_at DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepo) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Preload("Department").
		Order("role ASC, created_at ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepo) Count(ctx context.Context, role, status string) (int64, error) {
	var count int64
	db := r.db.WithContext(ctx).Model(&model.User{}).Where("role = ?", role)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Count(&count).Error
	return count, err
}

func (r *userRepo) DetachDepartment(ctx context.Context, departmentID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("department_id = ?", departmentID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id IN ?", ids).
		Update("department_id", nil).Error
	return ids, err
}

func (r *userRepo) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var rows []struct {
		UserID string
		Name   string
		Email  string
	}
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Select("user_id, name, email").
		Where("user_id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		name := row.Name
		if name == "" {
			name = row.Email
		}
		names[row.UserID] = name
	}
	return names, nil
}
