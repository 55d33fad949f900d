package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/internal/client/otp"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
	"github.com/arunvijo/SmartOPDAgent/internal/repository"
	pkgerrors "github.com/arunvijo/SmartOPDAgent/pkg/errors"
	"github.com/arunvijo/SmartOPDAgent/pkg/events"
)

// newMockRepository 全部使用内存实现的 Repository 聚合
func newMockRepository() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		users:         newMockUserRepo(),
		depts:         newMockDeptRepo(),
		availability:  newMockAvailabilityRepo(),
		bookings:      newMockBookingRepo(),
		notifications: newMockNotificationRepo(),
		feedback:      newMockFeedbackRepo(),
	}
	repo := &repository.Repository{
		User:         m.users,
		Department:   m.depts,
		Availability: m.availability,
		Booking:      m.bookings,
		Notification: m.notifications,
		Feedback:     m.feedback,
	}
	return repo, m
}

type mockRepos struct {
	users         *mockUserRepo
	depts         *mockDeptRepo
	availability  *mockAvailabilityRepo
	bookings      *mockBookingRepo
	notifications *mockNotificationRepo
	feedback      *mockFeedbackRepo
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User // key: user_id
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) add(user *model.User) *model.User {
	if user.UserID == "" {
		m.seq++
		user.UserID = fmt.Sprintf("user-%d", m.seq)
	}
	m.users[user.UserID] = user
	return user
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	user.CreatedAt = time.Now()
	m.add(user)
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id string, fields map[string]interface{}) error {
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := fields["name"].(string); ok {
		u.Name = v
	}
	if v, ok := fields["age"].(int); ok {
		u.Age = &v
	}
	if v, ok := fields["insurance"].(string); ok {
		u.Insurance = v
	}
	if v, ok := fields["avatar_url"].(string); ok {
		u.AvatarURL = v
	}
	return nil
}

func (m *mockUserRepo) DecideDoctorStatus(_ context.Context, id, status, _ string) (int64, error) {
	u, ok := m.users[id]
	if !ok || u.Role != model.RoleDoctor {
		return 0, nil
	}
	if u.Status != nil && *u.Status != model.DoctorStatusPending {
		return 0, nil
	}
	u.Status = &status
	return 1, nil
}

func (m *mockUserRepo) List(_ context.Context, filter repository.UserFilter, offset, limit int) ([]model.User, int64, error) {
	var result []model.User
	for _, u := range m.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Status != "" && (u.Status == nil || *u.Status != filter.Status) {
			continue
		}
		if filter.Keyword != "" {
			kw := strings.ToLower(filter.Keyword)
			if !strings.Contains(strings.ToLower(u.Name), kw) && !strings.Contains(strings.ToLower(u.Email), kw) {
				continue
			}
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })

	total := int64(len(result))
	if limit > 0 {
		if offset >= len(result) {
			return []model.User{}, total, nil
		}
		end := offset + limit
		if end > len(result) {
			end = len(result)
		}
		result = result[offset:end]
	}
	return result, total, nil
}

func (m *mockUserRepo) ListAll(ctx context.Context) ([]model.User, error) {
	users, _, err := m.List(ctx, repository.UserFilter{}, 0, 0)
	return users, err
}

func (m *mockUserRepo) Count(_ context.Context, role, status string) (int64, error) {
	var n int64
	for _, u := range m.users {
		if u.Role != role {
			continue
		}
		if status != "" && (u.Status == nil || *u.Status != status) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *mockUserRepo) DetachDepartment(_ context.Context, departmentID string) ([]string, error) {
	ids := []string{}
	for _, u := range m.users {
		if u.DepartmentID != nil && *u.DepartmentID == departmentID {
			u.DepartmentID = nil
			u.Department = nil
			ids = append(ids, u.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockUserRepo) NamesByIDs(_ context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			names[id] = u.Name
		}
	}
	return names, nil
}

// ── Mock DepartmentRepository ──

type mockDeptRepo struct {
	depts   map[string]*model.Department
	created int
}

func newMockDeptRepo() *mockDeptRepo {
	return &mockDeptRepo{
		depts: map[string]*model.Department{
			"dept-cardio": {DepartmentID: "dept-cardio", Name: "Cardiology"},
		},
	}
}

func (m *mockDeptRepo) Create(_ context.Context, dept *model.Department) error {
	m.created++
	if dept.DepartmentID == "" {
		dept.DepartmentID = fmt.Sprintf("dept-%d", m.created)
	}
	m.depts[dept.DepartmentID] = dept
	return nil
}

func (m *mockDeptRepo) GetByID(_ context.Context, id string) (*model.Department, error) {
	if d, ok := m.depts[id]; ok {
		return d, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) List(_ context.Context) ([]model.Department, error) {
	var result []model.Department
	for _, d := range m.depts {
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockDeptRepo) Delete(_ context.Context, id string, _ string) (int64, error) {
	if _, ok := m.depts[id]; !ok {
		return 0, nil
	}
	delete(m.depts, id)
	return 1, nil
}

// ── Mock AvailabilityRepository ──
// 读取返回深拷贝，条件更新按存储中的状态判断，行为与数据库一致

type mockAvailabilityRepo struct {
	mu        sync.Mutex
	schedules map[string]*model.DaySchedule // key: schedule_key
	writes    int
	// beforeWrite 在条件更新前执行，用于模拟并发写入
	beforeWrite func()
}

func newMockAvailabilityRepo() *mockAvailabilityRepo {
	return &mockAvailabilityRepo{schedules: make(map[string]*model.DaySchedule)}
}

func cloneSchedule(s *model.DaySchedule) *model.DaySchedule {
	cp := *s
	cp.Slots = make([]model.ScheduleSlot, len(s.Slots))
	copy(cp.Slots, s.Slots)
	return &cp
}

func (m *mockAvailabilityRepo) stored(doctorID, date string) *model.DaySchedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedules[model.ScheduleKey(doctorID, date)]
}

func (m *mockAvailabilityRepo) GetByDoctorDate(_ context.Context, doctorID, date string) (*model.DaySchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schedules[model.ScheduleKey(doctorID, date)]; ok {
		return cloneSchedule(s), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAvailabilityRepo) CreateIfAbsent(_ context.Context, schedule *model.DaySchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[schedule.ScheduleKey]; ok {
		return repository.ErrDayScheduleConflict
	}
	schedule.DayScheduleID = "ds-" + schedule.ScheduleKey
	for i := range schedule.Slots {
		schedule.Slots[i].SlotID = fmt.Sprintf("%s-slot-%d", schedule.ScheduleKey, i)
		schedule.Slots[i].DayScheduleID = schedule.DayScheduleID
	}
	m.schedules[schedule.ScheduleKey] = cloneSchedule(schedule)
	m.writes++
	return nil
}

func (m *mockAvailabilityRepo) SetSlotStatus(_ context.Context, schedule *model.DaySchedule, position int, from, to string) error {
	return m.cas(schedule, position, from, func(slot *model.ScheduleSlot) {
		slot.Status = to
	})
}

func (m *mockAvailabilityRepo) BookSlot(_ context.Context, schedule *model.DaySchedule, position int, patientID, patientName string) error {
	return m.cas(schedule, position, model.SlotAvailable, func(slot *model.ScheduleSlot) {
		slot.Status = model.SlotBooked
		slot.PatientID = &patientID
		slot.PatientName = patientName
	})
}

func (m *mockAvailabilityRepo) cas(schedule *model.DaySchedule, position int, from string, apply func(*model.ScheduleSlot)) error {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[schedule.ScheduleKey]
	if !ok || position < 0 || position >= len(s.Slots) {
		return pkgerrors.ErrStaleSlotState
	}
	if s.Slots[position].Status != from {
		return pkgerrors.ErrStaleSlotState
	}
	if s.Version != schedule.Version {
		return pkgerrors.ErrOptimisticLock
	}
	apply(&s.Slots[position])
	s.Version++
	schedule.Version = s.Version
	m.writes++
	return nil
}

// ── Mock BookingRepository ──

type mockBookingRepo struct {
	bookings []model.Booking
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{}
}

func (m *mockBookingRepo) Create(_ context.Context, b *model.Booking) error {
	b.BookingID = fmt.Sprintf("booking-%d", len(m.bookings)+1)
	b.CreatedAt = time.Now()
	m.bookings = append(m.bookings, *b)
	return nil
}

func (m *mockBookingRepo) ListByPatient(_ context.Context, patientID, fromDate string, limit int) ([]model.Booking, error) {
	var result []model.Booking
	for _, b := range m.bookings {
		if b.PatientID != patientID {
			continue
		}
		if fromDate != "" && b.AppointmentDate < fromDate {
			continue
		}
		result = append(result, b)
	}
	asc := fromDate != ""
	sort.Slice(result, func(i, j int) bool {
		ki := result[i].AppointmentDate + result[i].AppointmentTime
		kj := result[j].AppointmentDate + result[j].AppointmentTime
		if asc {
			return ki < kj
		}
		return ki > kj
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	items []*model.Notification
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	n.NotificationID = fmt.Sprintf("n-%d", len(m.items)+1)
	n.CreatedAt = time.Now().Add(time.Duration(len(m.items)) * time.Millisecond)
	m.items = append(m.items, n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, limit int) ([]model.Notification, error) {
	var result []model.Notification
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].UserID == userID {
			result = append(result, *m.items[i])
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	var n int64
	for _, item := range m.items {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, userID, id string) (int64, error) {
	for _, item := range m.items {
		if item.NotificationID == id && item.UserID == userID {
			item.IsRead = true
			return 1, nil
		}
	}
	return 0, nil
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	var n int64
	for _, item := range m.items {
		if item.UserID == userID && !item.IsRead {
			item.IsRead = true
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) forUser(userID string) []*model.Notification {
	var result []*model.Notification
	for _, item := range m.items {
		if item.UserID == userID {
			result = append(result, item)
		}
	}
	return result
}

// ── Mock FeedbackRepository ──

type mockFeedbackRepo struct {
	items []model.Feedback
}

func newMockFeedbackRepo() *mockFeedbackRepo {
	return &mockFeedbackRepo{}
}

func (m *mockFeedbackRepo) Create(_ context.Context, f *model.Feedback) error {
	f.FeedbackID = fmt.Sprintf("fb-%d", len(m.items)+1)
	f.CreatedAt = time.Now()
	m.items = append(m.items, *f)
	return nil
}

func (m *mockFeedbackRepo) List(_ context.Context, offset, limit int) ([]model.Feedback, int64, error) {
	total := int64(len(m.items))
	if offset >= len(m.items) {
		return []model.Feedback{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(m.items) {
		end = len(m.items)
	}
	return m.items[offset:end], total, nil
}

// ── Mock 外部依赖 ──

type mockOTPClient struct {
	validCode string
	sent      []string
	verified  int
}

func (m *mockOTPClient) Send(_ context.Context, email string) otp.Result {
	m.sent = append(m.sent, email)
	return otp.Result{Success: true, Message: "OTP sent"}
}

func (m *mockOTPClient) Verify(_ context.Context, _ string, code string) otp.Result {
	m.verified++
	if code == m.validCode {
		return otp.Result{Success: true, Message: "verified"}
	}
	return otp.Result{Success: false, Message: "invalid otp"}
}

type mockBlacklist struct {
	tokens map[string]time.Duration
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{tokens: make(map[string]time.Duration)}
}

func (m *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	m.tokens[jti] = ttl
	return nil
}

func (m *mockBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	_, ok := m.tokens[jti]
	return ok, nil
}

type mockAgent struct {
	reply string
	err   error
	calls int
}

func (m *mockAgent) Send(_ context.Context, message, userID string) (string, error) {
	m.calls++
	return m.reply, m.err
}

type recordingInvalidator struct {
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID string) {
	r.ids = append(r.ids, userID)
}

type recordingPublisher struct {
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) {
	r.events = append(r.events, e)
}

func (r *recordingPublisher) Close() error { return nil }

// ── 测试数据 ──

func strPtr(s string) *string { return &s }

func seedPatient(m *mockRepos, id, name string) *model.User {
	return m.users.add(&model.User{UserID: id, Name: name, Email: id + "@test.com", Role: model.RolePatient})
}

func seedDoctor(m *mockRepos, id, name, status string) *model.User {
	return m.users.add(&model.User{
		UserID:         id,
		Name:           name,
		Email:          id + "@test.com",
		Role:           model.RoleDoctor,
		Status:         strPtr(status),
		DepartmentID:   strPtr("dept-cardio"),
		Specialization: "Cardiologist",
	})
}
