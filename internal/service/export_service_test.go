package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/internal/model"
)

func TestExportService_ExportUsers(t *testing.T) {
	repo, repos := newMockRepository()
	svc := NewExportService(repo, zap.NewNop()).(*exportService)
	svc.now = func() time.Time { return time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) }

	seedPatient(repos, "pat-1", "Asha")
	doc := seedDoctor(repos, "doc-1", "Grey", model.DoctorStatusPending)
	doc.Department = &model.Department{DepartmentID: "dept-cardio", Name: "Cardiology"}

	buf, filename, err := svc.ExportUsers(context.Background())
	if err != nil {
		t.Fatalf("ExportUsers 应成功: %v", err)
	}
	if filename != "smartopd_users_20260309.xlsx" {
		t.Errorf("文件名错误: %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("生成的文件无法解析: %v", err)
	}
	defer f.Close()

	users, err := f.GetRows("Users")
	if err != nil {
		t.Fatalf("读取 Users 失败: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("期望表头 + 2 行，实际=%d", len(users))
	}

	doctors, err := f.GetRows("Doctors")
	if err != nil {
		t.Fatalf("读取 Doctors 失败: %v", err)
	}
	if len(doctors) != 2 {
		t.Fatalf("期望表头 + 1 行，实际=%d", len(doctors))
	}
	row := strings.Join(doctors[1], "|")
	if !strings.Contains(row, "Cardiology") || !strings.Contains(row, model.DoctorStatusPending) {
		t.Errorf("医生行内容错误: %s", row)
	}
}
