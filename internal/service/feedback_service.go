package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
	"github.com/arunvijo/SmartOPDAgent/internal/repository"
)

var (
	ErrFeedbackEmpty = errors.New("反馈内容不能为空")
)

// FeedbackService 患者反馈业务接口
type FeedbackService interface {
	Submit(ctx context.Context, userID string, req *dto.SubmitFeedbackRequest) (*dto.FeedbackResponse, error)
}

type feedbackService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewFeedbackService 创建 FeedbackService 实例
func NewFeedbackService(repo *repository.Repository, logger *zap.Logger) FeedbackService {
	return &feedbackService{repo: repo, logger: logger}
}

func (s *feedbackService) Submit(ctx context.Context, userID string, req *dto.SubmitFeedbackRequest) (*dto.FeedbackResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrFeedbackEmpty
	}

	f := &model.Feedback{UserID: userID, Text: text}
	if req.DoctorID != "" {
		f.DoctorID = &req.DoctorID
	}
	if err := s.repo.Feedback.Create(ctx, f); err != nil {
		s.logger.Error("提交反馈失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	resp := toFeedbackResponse(f)
	return &resp, nil
}

func toFeedbackResponse(f *model.Feedback) dto.FeedbackResponse {
	resp := dto.FeedbackResponse{
		ID:        f.FeedbackID,
		Text:      f.Text,
		PatientID: f.UserID,
		CreatedAt: f.CreatedAt.Format(model.TimestampLayout),
	}
	if f.DoctorID != nil {
		resp.DoctorID = *f.DoctorID
	}
	return resp
}
