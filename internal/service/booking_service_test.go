package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/config"
	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
	"github.com/arunvijo/SmartOPDAgent/pkg/events"
)

// ── 测试辅助 ──

type bookingFixture struct {
	svc       *bookingService
	schedules AvailabilityService
	repos     *mockRepos
	events    *recordingPublisher
	broker    *countingBroker
}

// countingBroker 记录变更信号
type countingBroker struct {
	Broker
	published []string
}

func (b *countingBroker) Publish(ctx context.Context, userID string) error {
	b.published = append(b.published, userID)
	return b.Broker.Publish(ctx, userID)
}

func setupTestBookingService() *bookingFixture {
	repo, repos := newMockRepository()
	logger := zap.NewNop()
	now := func() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) }

	broker := &countingBroker{Broker: NewMemoryBroker()}
	notification := NewNotificationService(repo, broker, nil, logger)
	pub := &recordingPublisher{}

	svc := NewBookingService(repo, notification, pub, nil, logger).(*bookingService)
	svc.now = now

	avail := NewAvailabilityService(&config.SchedulerConfig{DayStart: "09:00", DayEnd: "17:00", SlotMinutes: 30}, repo, nil, logger).(*availabilityService)
	avail.now = now

	seedPatient(repos, "pat-1", "Asha")
	seedDoctor(repos, testDoctor, "Grey", model.DoctorStatusApproved)
	if _, err := avail.GenerateDay(context.Background(), testDoctor, testDate); err != nil {
		panic(err)
	}

	return &bookingFixture{svc: svc, schedules: avail, repos: repos, events: pub, broker: broker}
}

func bookReq(doctorID, date string, index int) *dto.CreateBookingRequest {
	return &dto.CreateBookingRequest{DoctorID: doctorID, Date: date, SlotIndex: &index}
}

// ── Book 测试 ──

func TestBookingService_Book_Success(t *testing.T) {
	f := setupTestBookingService()
	ctx := context.Background()

	result, err := f.svc.Book(ctx, "pat-1", bookReq(testDoctor, testDate, 2))
	if err != nil {
		t.Fatalf("Book 应成功: %v", err)
	}
	if result.Time != "10:00" || result.DoctorName != "Grey" || result.Status != model.BookingUpcoming {
		t.Errorf("预约内容错误: %+v", result)
	}

	slot := f.repos.availability.stored(testDoctor, testDate).Slots[2]
	if slot.Status != model.SlotBooked || slot.PatientID == nil || *slot.PatientID != "pat-1" {
		t.Errorf("时段应标记为 pat-1 已预约，实际=%+v", slot)
	}
	if len(f.repos.notifications.forUser(testDoctor)) != 1 || len(f.repos.notifications.forUser("pat-1")) != 1 {
		t.Error("医生和患者应各收到一条通知")
	}
	if len(f.broker.published) != 2 {
		t.Errorf("期望广播 2 次变更信号，实际=%v", f.broker.published)
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != events.TypeSlotBooked {
		t.Errorf("期望发布 slot.booked 事件，实际=%+v", f.events.events)
	}
}

func TestBookingService_Book_SlotTaken(t *testing.T) {
	f := setupTestBookingService()
	ctx := context.Background()
	seedPatient(f.repos, "pat-2", "Ravi")

	if _, err := f.svc.Book(ctx, "pat-1", bookReq(testDoctor, testDate, 0)); err != nil {
		t.Fatalf("首次预约应成功: %v", err)
	}
	_, err := f.svc.Book(ctx, "pat-2", bookReq(testDoctor, testDate, 0))
	if !errors.Is(err, ErrSlotNotAvailable) {
		t.Fatalf("期望 ErrSlotNotAvailable，实际: %v", err)
	}
	if len(f.repos.bookings.bookings) != 1 {
		t.Errorf("期望仅 1 条预约，实际=%d", len(f.repos.bookings.bookings))
	}
}

func TestBookingService_Book_UnavailableSlot(t *testing.T) {
	f := setupTestBookingService()
	ctx := context.Background()

	if _, err := f.schedules.ToggleSlot(ctx, testDoctor, testDate, 1); err != nil {
		t.Fatalf("ToggleSlot 失败: %v", err)
	}
	_, err := f.svc.Book(ctx, "pat-1", bookReq(testDoctor, testDate, 1))
	if !errors.Is(err, ErrSlotNotAvailable) {
		t.Errorf("期望 ErrSlotNotAvailable，实际: %v", err)
	}
}

func TestBookingService_Book_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		patient string
		req     *dto.CreateBookingRequest
		want    error
	}{
		{"doctor cannot book", testDoctor, bookReq(testDoctor, testDate, 0), ErrBookingForbidden},
		{"unknown doctor", "pat-1", bookReq("doc-x", testDate, 0), ErrDoctorNotFound},
		{"no schedule", "pat-1", bookReq(testDoctor, "2026-03-11", 0), ErrDayScheduleNotFound},
		{"index out of range", "pat-1", bookReq(testDoctor, testDate, 16), ErrSlotIndexOutOfRange},
		{"past date", "pat-1", bookReq(testDoctor, "2026-03-08", 0), ErrBookingInPast},
		{"bad date", "pat-1", bookReq(testDoctor, "March 10", 0), ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestBookingService()
			_, err := f.svc.Book(context.Background(), tt.patient, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
			if len(f.repos.bookings.bookings) != 0 {
				t.Error("被拒绝的预约不应写入")
			}
		})
	}
}

func TestBookingService_Book_PendingDoctor(t *testing.T) {
	f := setupTestBookingService()
	seedDoctor(f.repos, "doc-pending", "New", model.DoctorStatusPending)

	_, err := f.svc.Book(context.Background(), "pat-1", bookReq("doc-pending", testDate, 0))
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("期望 ErrDoctorNotFound，实际: %v", err)
	}
}

// ── 查询测试 ──

func TestBookingService_ListUpcoming(t *testing.T) {
	f := setupTestBookingService()
	ctx := context.Background()

	for _, idx := range []int{5, 1, 3, 0} {
		if _, err := f.svc.Book(ctx, "pat-1", bookReq(testDoctor, testDate, idx)); err != nil {
			t.Fatalf("Book(%d) 失败: %v", idx, err)
		}
	}

	upcoming, err := f.svc.ListUpcoming(ctx, "pat-1", 0)
	if err != nil {
		t.Fatalf("ListUpcoming 应成功: %v", err)
	}
	if len(upcoming) != defaultUpcomingLimit {
		t.Fatalf("期望 %d 条，实际=%d", defaultUpcomingLimit, len(upcoming))
	}
	if upcoming[0].Time != "09:00" || upcoming[1].Time != "09:30" {
		t.Errorf("期望按时间升序，实际=%s,%s", upcoming[0].Time, upcoming[1].Time)
	}

	all, _ := f.svc.ListMine(ctx, "pat-1")
	if len(all) != 4 {
		t.Errorf("期望全部 4 条，实际=%d", len(all))
	}
}

func TestBookingService_Calendar(t *testing.T) {
	f := setupTestBookingService()
	ctx := context.Background()

	if _, err := f.svc.Book(ctx, "pat-1", bookReq(testDoctor, testDate, 0)); err != nil {
		t.Fatalf("Book 失败: %v", err)
	}

	cal, err := f.svc.Calendar(ctx, "pat-1")
	if err != nil {
		t.Fatalf("Calendar 应成功: %v", err)
	}
	if !strings.Contains(cal, "BEGIN:VEVENT") || !strings.Contains(cal, "booking-1@smartopd") {
		t.Errorf("日历应包含预约事件:\n%s", cal)
	}
}

func TestBookingService_TodayUsesUTCDate(t *testing.T) {
	f := setupTestBookingService()
	ctx := context.Background()
	if _, err := f.schedules.GenerateDay(ctx, testDoctor, "2026-03-09"); err != nil {
		t.Fatalf("生成出诊表失败: %v", err)
	}

	// 本地已是 3 月 10 日，UTC 仍为 3 月 9 日
	ist := time.FixedZone("IST", 5*3600+1800)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 10, 2, 0, 0, 0, ist) }

	if _, err := f.svc.Book(ctx, "pat-1", bookReq(testDoctor, "2026-03-09", 0)); err != nil {
		t.Fatalf("UTC 当天应允许预约: %v", err)
	}

	upcoming, err := f.svc.ListUpcoming(ctx, "pat-1", 0)
	if err != nil {
		t.Fatalf("ListUpcoming 失败: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].Date != "2026-03-09" {
		t.Errorf("UTC 当天的预约应计入即将到来: %+v", upcoming)
	}
}
