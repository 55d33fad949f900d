package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/internal/model"
)

// FeedbackRepository 反馈数据访问接口
type FeedbackRepository interface {
	Create(ctx context.Context, f *model.Feedback) error
	List(ctx context.Context, offset, limit int) ([]model.Feedback, int64, error)
}

type feedbackRepo struct {
	db *gorm.DB
}

// NewFeedbackRepo 创建 FeedbackRepository 实例
func NewFeedbackRepo(db *gorm.DB) FeedbackRepository {
	return &feedbackRepo{db: db}
}

func (r *feedbackRepo) Create(ctx context.Context, f *model.Feedback) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *feedbackRepo) List(ctx context.Context, offset, limit int) ([]model.Feedback, int64, error) {
	var list []model.Feedback
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Feedback{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := db.Order("created_at DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
