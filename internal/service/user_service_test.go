package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
)

// ── 测试辅助 ──

func setupTestUserService() (UserService, *mockRepos, *recordingInvalidator) {
	repo, repos := newMockRepository()
	inv := &recordingInvalidator{}
	return NewUserService(repo, inv, zap.NewNop()), repos, inv
}

// ── GetProfile 测试 ──

func TestUserService_GetProfile_Success(t *testing.T) {
	svc, repos, _ := setupTestUserService()
	doc := seedDoctor(repos, "doc-1", "Dr. Grey", model.DoctorStatusApproved)
	doc.Department = &model.Department{DepartmentID: "dept-cardio", Name: "Cardiology"}

	result, err := svc.GetProfile(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetProfile 应成功: %v", err)
	}
	if result.Name != "Dr. Grey" {
		t.Errorf("期望 Name=Dr. Grey，实际=%s", result.Name)
	}
	if result.Status != model.DoctorStatusApproved {
		t.Errorf("期望 Status=approved，实际=%s", result.Status)
	}
	if result.Department == nil || result.Department.Name != "Cardiology" {
		t.Errorf("期望返回科室名称，实际=%+v", result.Department)
	}
}

func TestUserService_GetProfile_NotFound(t *testing.T) {
	svc, _, _ := setupTestUserService()

	_, err := svc.GetProfile(context.Background(), "nonexistent")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}

// ── UpdateProfile 测试 ──

func TestUserService_UpdateProfile_Success(t *testing.T) {
	svc, repos, inv := setupTestUserService()
	seedPatient(repos, "pat-1", "Old Name")

	name, insurance, age := "  New Name ", "Star Health", 34
	result, err := svc.UpdateProfile(context.Background(), "pat-1", &dto.UpdateProfileRequest{
		Name:      &name,
		Insurance: &insurance,
		Age:       &age,
	})
	if err != nil {
		t.Fatalf("UpdateProfile 应成功: %v", err)
	}
	if result.Name != "New Name" {
		t.Errorf("期望 Name=New Name，实际=%q", result.Name)
	}
	if result.Age == nil || *result.Age != 34 {
		t.Errorf("期望 Age=34，实际=%v", result.Age)
	}
	if len(inv.ids) != 1 || inv.ids[0] != "pat-1" {
		t.Errorf("更新后应失效档案缓存，实际=%v", inv.ids)
	}
}

func TestUserService_UpdateProfile_NoChanges(t *testing.T) {
	svc, repos, _ := setupTestUserService()
	seedPatient(repos, "pat-1", "Name")

	_, err := svc.UpdateProfile(context.Background(), "pat-1", &dto.UpdateProfileRequest{})
	if !errors.Is(err, ErrNoProfileChanges) {
		t.Errorf("期望 ErrNoProfileChanges，实际: %v", err)
	}
}

func TestUserService_UpdateProfile_NotFound(t *testing.T) {
	svc, _, _ := setupTestUserService()

	name := "x"
	_, err := svc.UpdateProfile(context.Background(), "ghost", &dto.UpdateProfileRequest{Name: &name})
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}
