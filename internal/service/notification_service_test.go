package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
)

// ── 测试辅助 ──

func setupTestNotificationService() (NotificationService, *mockRepos) {
	repo, repos := newMockRepository()
	return NewNotificationService(repo, NewMemoryBroker(), nil, zap.NewNop()), repos
}

func receiveFeed(t *testing.T, ch <-chan dto.NotificationFeed) dto.NotificationFeed {
	t.Helper()
	select {
	case feed, ok := <-ch:
		if !ok {
			t.Fatal("订阅通道已关闭")
		}
		return feed
	case <-time.After(2 * time.Second):
		t.Fatal("等待推送超时")
	}
	return dto.NotificationFeed{}
}

// ── List / Notify 测试 ──

func TestNotificationService_List_NewestFirst(t *testing.T) {
	svc, _ := setupTestNotificationService()
	ctx := context.Background()

	_ = svc.Notify(ctx, "u1", model.NotificationBookingCreated, "first")
	_ = svc.Notify(ctx, "u1", model.NotificationBookingCreated, "second")
	_ = svc.Notify(ctx, "u2", model.NotificationBookingCreated, "other")

	items, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("期望 2 条，实际=%d", len(items))
	}
	if items[0].Message != "second" {
		t.Errorf("期望最新的在前，实际=%s", items[0].Message)
	}

	unread, _ := svc.UnreadCount(ctx, "u1")
	if unread != 2 {
		t.Errorf("期望未读 2，实际=%d", unread)
	}
}

// ── MarkRead 测试 ──

func TestNotificationService_MarkRead_OwnerOnly(t *testing.T) {
	svc, repos := setupTestNotificationService()
	ctx := context.Background()
	_ = svc.Notify(ctx, "u1", model.NotificationDoctorApproved, "approved")
	id := repos.notifications.items[0].NotificationID

	if err := svc.MarkRead(ctx, "u2", id); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("他人通知期望 ErrNotificationNotFound，实际: %v", err)
	}
	if repos.notifications.items[0].IsRead {
		t.Error("他人不能标记已读")
	}

	if err := svc.MarkRead(ctx, "u1", id); err != nil {
		t.Fatalf("MarkRead 应成功: %v", err)
	}
	// 重复标记
	if err := svc.MarkRead(ctx, "u1", id); err != nil {
		t.Errorf("重复标记应视为成功: %v", err)
	}
	if unread, _ := svc.UnreadCount(ctx, "u1"); unread != 0 {
		t.Errorf("期望未读 0，实际=%d", unread)
	}
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	svc, _ := setupTestNotificationService()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = svc.Notify(ctx, "u1", model.NotificationBookingCreated, "m")
	}

	updated, err := svc.MarkAllRead(ctx, "u1")
	if err != nil {
		t.Fatalf("MarkAllRead 应成功: %v", err)
	}
	if updated != 3 {
		t.Errorf("期望更新 3 条，实际=%d", updated)
	}
	if updated, _ := svc.MarkAllRead(ctx, "u1"); updated != 0 {
		t.Errorf("再次全部已读期望 0，实际=%d", updated)
	}
}

// ── Subscribe 测试 ──

func TestNotificationService_Subscribe_PushesFullFeed(t *testing.T) {
	svc, _ := setupTestNotificationService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = svc.Notify(ctx, "u1", model.NotificationBookingCreated, "existing")

	ch, err := svc.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("Subscribe 应成功: %v", err)
	}

	initial := receiveFeed(t, ch)
	if len(initial.Items) != 1 || initial.Unread != 1 {
		t.Fatalf("首次推送应包含现有通知，实际=%+v", initial)
	}

	_ = svc.Notify(ctx, "u1", model.NotificationBookingPatient, "new")
	next := receiveFeed(t, ch)
	if len(next.Items) != 2 || next.Unread != 2 {
		t.Errorf("变更后应推送完整列表，实际=%+v", next)
	}
	if next.Items[0].Message != "new" {
		t.Errorf("期望最新的在前，实际=%s", next.Items[0].Message)
	}
}

func TestNotificationService_Subscribe_ClosesOnCancel(t *testing.T) {
	svc, _ := setupTestNotificationService()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := svc.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("Subscribe 应成功: %v", err)
	}
	receiveFeed(t, ch)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// 取消前可能还有一份待消费的推送
			if _, ok := <-ch; ok {
				t.Error("取消后通道应关闭")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("取消后通道未关闭")
	}
}

func TestMemoryBroker_CoalescesSignals(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, "u1")
	for i := 0; i < 5; i++ {
		_ = b.Publish(ctx, "u1")
	}
	_ = b.Publish(ctx, "u2")

	<-ch
	select {
	case <-ch:
		t.Error("多次信号应合并为一次")
	default:
	}
}

func TestReplaceLatest_KeepsNewest(t *testing.T) {
	out := make(chan dto.NotificationFeed, 1)
	replaceLatest(out, dto.NotificationFeed{Unread: 1})
	replaceLatest(out, dto.NotificationFeed{Unread: 2})

	if got := <-out; got.Unread != 2 {
		t.Errorf("期望保留最新一份，实际 unread=%d", got.Unread)
	}
}
