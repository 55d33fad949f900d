package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
)

func TestFeedbackService_Submit(t *testing.T) {
	repo, repos := newMockRepository()
	svc := NewFeedbackService(repo, zap.NewNop())

	result, err := svc.Submit(context.Background(), "pat-1", &dto.SubmitFeedbackRequest{Text: " Very helpful ", DoctorID: "doc-1"})
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if result.Text != "Very helpful" || result.DoctorID != "doc-1" {
		t.Errorf("反馈内容错误: %+v", result)
	}
	if len(repos.feedback.items) != 1 {
		t.Errorf("期望写入 1 条，实际=%d", len(repos.feedback.items))
	}
}

func TestFeedbackService_Submit_Blank(t *testing.T) {
	repo, repos := newMockRepository()
	svc := NewFeedbackService(repo, zap.NewNop())

	_, err := svc.Submit(context.Background(), "pat-1", &dto.SubmitFeedbackRequest{Text: "   "})
	if !errors.Is(err, ErrFeedbackEmpty) {
		t.Errorf("期望 ErrFeedbackEmpty，实际: %v", err)
	}
	if len(repos.feedback.items) != 0 {
		t.Error("空反馈不应写入")
	}
}
