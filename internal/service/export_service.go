package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/internal/model"
	"github.com/arunvijo/SmartOPDAgent/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportUsers 导出全部用户为 Excel，医生另起一个 Sheet 并附审核状态
	ExportUsers(ctx context.Context) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger, now: time.Now}
}

// ═══════════════════════════════════════════════════════════
// ExportUsers — 导出用户为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "Users"：姓名 / 邮箱 / 角色 / 科室 / 注册时间
//   - Sheet "Doctors"：姓名 / 邮箱 / 科室 / 专长 / 审核状态
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportUsers(ctx context.Context) (*bytes.Buffer, string, error) {
	users, err := s.repo.User.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// ── Users ──
	const usersSheet = "Users"
	idx, _ := f.NewSheet(usersSheet)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	writeHeader(f, usersSheet, headerStyle, []string{"Name", "Email", "Role", "Department", "Registered"}, []float64{22, 32, 10, 22, 22})
	row := 2
	for i := range users {
		u := &users[i]
		f.SetSheetRow(usersSheet, cell("A", row), &[]interface{}{
			u.Name, u.Email, u.Role, departmentName(u), u.CreatedAt.Format("2006-01-02 15:04"),
		})
		row++
	}

	// ── Doctors ──
	const doctorsSheet = "Doctors"
	f.NewSheet(doctorsSheet)
	writeHeader(f, doctorsSheet, headerStyle, []string{"Name", "Email", "Department", "Specialization", "Status"}, []float64{22, 32, 22, 24, 12})
	row = 2
	for i := range users {
		u := &users[i]
		if u.Role != model.RoleDoctor {
			continue
		}
		f.SetSheetRow(doctorsSheet, cell("A", row), &[]interface{}{
			u.Name, u.Email, departmentName(u), u.Specialization, u.EffectiveStatus(),
		})
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("smartopd_users_%s.xlsx", s.now().Format("20060102"))
	return buf, filename, nil
}

// ── 辅助函数 ──

func writeHeader(f *excelize.File, sheet string, style int, titles []string, widths []float64) {
	for i, title := range titles {
		col := colName(i)
		f.SetCellValue(sheet, cell(col, 1), title)
		if i < len(widths) {
			f.SetColWidth(sheet, col, col, widths[i])
		}
	}
	f.SetCellStyle(sheet, "A1", cell(colName(len(titles)-1), 1), style)
}

func departmentName(u *model.User) string {
	if u.Department != nil {
		return u.Department.Name
	}
	return ""
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
