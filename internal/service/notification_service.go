package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
	"github.com/arunvijo/SmartOPDAgent/internal/repository"
	"github.com/arunvijo/SmartOPDAgent/pkg/metrics"
)

// ── 通知模块业务错误 ──

var (
	ErrNotificationNotFound = errors.New("通知不存在")
)

// feedLimit 单次推送的最大条数
const feedLimit = 50

// NotificationService 通知业务接口
type NotificationService interface {
	List(ctx context.Context, userID string) ([]dto.NotificationResponse, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	// MarkRead 仅允许本人标记，重复标记视为成功
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	// Notify 写入通知并广播变更信号
	Notify(ctx context.Context, userID, kind, message string) error
	// Signal 通知已在外部事务中写入时，仅广播变更信号
	Signal(ctx context.Context, userIDs ...string)
	Feed(ctx context.Context, userID string) (*dto.NotificationFeed, error)
	// Subscribe 先推送当前完整列表，之后每次变更推送新列表；ctx 取消时关闭
	Subscribe(ctx context.Context, userID string) (<-chan dto.NotificationFeed, error)
}

type notificationService struct {
	repo    *repository.Repository
	broker  Broker
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(
	repo *repository.Repository,
	broker Broker,
	m *metrics.Collector,
	logger *zap.Logger,
) NotificationService {
	return &notificationService{repo: repo, broker: broker, metrics: m, logger: logger}
}

// ────────────────────── 查询 ──────────────────────

func (s *notificationService) List(ctx context.Context, userID string) ([]dto.NotificationResponse, error) {
	items, err := s.repo.Notification.ListByUser(ctx, userID, feedLimit)
	if err != nil {
		s.logger.Error("查询通知失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.NotificationResponse, 0, len(items))
	for i := range items {
		result = append(result, toNotificationResponse(&items[i]))
	}
	return result, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.Notification.CountUnread(ctx, userID)
}

func (s *notificationService) Feed(ctx context.Context, userID string) (*dto.NotificationFeed, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.NotificationFeed{Items: items, Unread: unread}, nil
}

// ────────────────────── 标记已读 ──────────────────────

func (s *notificationService) MarkRead(ctx context.Context, userID, id string) error {
	matched, err := s.repo.Notification.MarkRead(ctx, userID, id)
	if err != nil {
		s.logger.Error("标记通知已读失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if matched == 0 {
		return ErrNotificationNotFound
	}

	s.metrics.NotificationsRead(matched)
	s.Signal(ctx, userID)
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.repo.Notification.MarkAllRead(ctx, userID)
	if err != nil {
		s.logger.Error("全部标记已读失败", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}

	if updated > 0 {
		s.metrics.NotificationsRead(updated)
		s.Signal(ctx, userID)
	}
	return updated, nil
}

// ────────────────────── 生产与广播 ──────────────────────

func (s *notificationService) Notify(ctx context.Context, userID, kind, message string) error {
	n := &model.Notification{
		UserID:  userID,
		Type:    kind,
		Message: message,
	}
	if err := s.repo.Notification.Create(ctx, n); err != nil {
		s.logger.Error("写入通知失败", zap.String("user_id", userID), zap.String("type", kind), zap.Error(err))
		return err
	}

	s.metrics.NotificationSent(kind)
	s.Signal(ctx, userID)
	return nil
}

func (s *notificationService) Signal(ctx context.Context, userIDs ...string) {
	for _, uid := range userIDs {
		if err := s.broker.Publish(ctx, uid); err != nil {
			// 广播失败不影响已写入的数据，客户端下次拉取即可看到
			s.logger.Warn("通知变更广播失败", zap.String("user_id", uid), zap.Error(err))
		}
	}
}

// ────────────────────── 订阅 ──────────────────────

func (s *notificationService) Subscribe(ctx context.Context, userID string) (<-chan dto.NotificationFeed, error) {
	// 先订阅再查询，避免两者之间的变更丢失
	signals := s.broker.Subscribe(ctx, userID)

	initial, err := s.Feed(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(chan dto.NotificationFeed, 1)
	out <- *initial

	go func() {
		defer close(out)
		for range signals {
			feed, err := s.Feed(ctx, userID)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("刷新通知列表失败", zap.String("user_id", userID), zap.Error(err))
				}
				continue
			}
			replaceLatest(out, *feed)
		}
	}()

	return out, nil
}

// ── 内部辅助方法 ──

// replaceLatest 丢弃尚未消费的旧列表，只保留最新一份
func replaceLatest(out chan dto.NotificationFeed, feed dto.NotificationFeed) {
	select {
	case out <- feed:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	out <- feed
}

func toNotificationResponse(n *model.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:        n.NotificationID,
		Type:      n.Type,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.Format(model.TimestampLayout),
	}
}
