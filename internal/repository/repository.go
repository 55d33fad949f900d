package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User         UserRepository
	Department   DepartmentRepository
	Availability AvailabilityRepository
	Booking      BookingRepository
	Notification NotificationRepository
	Feedback     FeedbackRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:           db,
		User:         NewUserRepo(db),
		Department:   NewDepartmentRepo(db),
		Availability: NewAvailabilityRepo(db),
		Booking:      NewBookingRepo(db),
		Notification: NewNotificationRepo(db),
		Feedback:     NewFeedbackRepo(db),
	}
}

// WithTx 返回绑定到事务连接的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在事务中执行 fn；fn 返回错误或 panic 时回滚
// 未绑定数据库连接时（单元测试的内存实现）直接以当前聚合执行
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
