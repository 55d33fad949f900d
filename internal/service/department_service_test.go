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

func setupTestDepartmentService() (DepartmentService, *mockRepos, *recordingInvalidator) {
	repo, repos := newMockRepository()
	inv := &recordingInvalidator{}
	return NewDepartmentService(repo, inv, zap.NewNop()), repos, inv
}

// ── Create 测试 ──

func TestDepartmentService_Create_Success(t *testing.T) {
	svc, _, _ := setupTestDepartmentService()

	result, err := svc.Create(context.Background(), &dto.CreateDepartmentRequest{Name: "  Neurology "}, "admin-1")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if result.Name != "Neurology" {
		t.Errorf("期望 Name=Neurology，实际=%q", result.Name)
	}
}

func TestDepartmentService_Create_BlankName(t *testing.T) {
	for _, name := range []string{"", "   ", "\t\n"} {
		svc, repos, _ := setupTestDepartmentService()

		_, err := svc.Create(context.Background(), &dto.CreateDepartmentRequest{Name: name}, "admin-1")
		if !errors.Is(err, ErrDepartmentNameBlank) {
			t.Errorf("名称 %q 期望 ErrDepartmentNameBlank，实际: %v", name, err)
		}
		if repos.depts.created != 0 {
			t.Errorf("名称 %q 不应写入任何记录", name)
		}
	}
}

func TestDepartmentService_Create_DuplicateAllowed(t *testing.T) {
	svc, repos, _ := setupTestDepartmentService()

	if _, err := svc.Create(context.Background(), &dto.CreateDepartmentRequest{Name: "Cardiology"}, "admin-1"); err != nil {
		t.Fatalf("重名科室应允许创建: %v", err)
	}
	if len(repos.depts.depts) != 2 {
		t.Errorf("期望 2 个科室，实际=%d", len(repos.depts.depts))
	}
}

// ── List 测试 ──

func TestDepartmentService_List(t *testing.T) {
	svc, _, _ := setupTestDepartmentService()

	result, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if len(result) != 1 || result[0].Name != "Cardiology" {
		t.Errorf("期望仅 Cardiology，实际=%+v", result)
	}
}

// ── Delete 测试 ──

func TestDepartmentService_Delete_DetachesDoctors(t *testing.T) {
	svc, repos, inv := setupTestDepartmentService()
	seedDoctor(repos, "doc-1", "Dr. A", model.DoctorStatusApproved)
	seedDoctor(repos, "doc-2", "Dr. B", model.DoctorStatusPending)
	seedPatient(repos, "pat-1", "P")

	result, err := svc.Delete(context.Background(), "dept-cardio", "admin-1")
	if err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if result.DoctorsDetached != 2 {
		t.Errorf("期望解除 2 名医生，实际=%d", result.DoctorsDetached)
	}
	for _, id := range []string{"doc-1", "doc-2"} {
		if repos.users.users[id].DepartmentID != nil {
			t.Errorf("%s 的 department_id 应被置空", id)
		}
	}
	if _, ok := repos.depts.depts["dept-cardio"]; ok {
		t.Error("科室应已删除")
	}
	if len(inv.ids) != 2 {
		t.Errorf("受影响医生的档案缓存应失效，实际=%v", inv.ids)
	}
}

func TestDepartmentService_Delete_NotFound(t *testing.T) {
	svc, _, _ := setupTestDepartmentService()

	_, err := svc.Delete(context.Background(), "nonexistent", "admin-1")
	if !errors.Is(err, ErrDepartmentNotFound) {
		t.Errorf("期望 ErrDepartmentNotFound，实际: %v", err)
	}
}
