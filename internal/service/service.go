package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/config"
	"github.com/arunvijo/SmartOPDAgent/internal/client/otp"
	"github.com/arunvijo/SmartOPDAgent/internal/repository"
	"github.com/arunvijo/SmartOPDAgent/pkg/events"
	"github.com/arunvijo/SmartOPDAgent/pkg/jwt"
	"github.com/arunvijo/SmartOPDAgent/pkg/metrics"
	"github.com/arunvijo/SmartOPDAgent/pkg/ratelimit"
)

// ── 外部依赖接口 ──

// AgentClient 导诊 webhook
type AgentClient interface {
	Send(ctx context.Context, message, userID string) (string, error)
}

// OTPClient 验证码 webhook
type OTPClient interface {
	Send(ctx context.Context, email string) otp.Result
	Verify(ctx context.Context, email, code string) otp.Result
}

// ProfileInvalidator 档案变更后失效身份缓存
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// TokenBlacklist 令牌黑名单
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// Infra 服务层共享的基础设施；除 Agent、OTP 外均可为空
type Infra struct {
	Agent      AgentClient
	OTP        OTPClient
	Profiles   ProfileInvalidator
	Blacklist  TokenBlacklist
	OTPLimiter ratelimit.Limiter
	Broker     Broker
	Metrics    *metrics.Collector
	Events     events.Publisher
}

func (in *Infra) withDefaults() {
	if in.Profiles == nil {
		in.Profiles = noopInvalidator{}
	}
	if in.Broker == nil {
		in.Broker = NewMemoryBroker()
	}
	if in.Events == nil {
		in.Events = events.Nop{}
	}
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, string) {}

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	User         UserService
	Department   DepartmentService
	Availability AvailabilityService
	Booking      BookingService
	Notification NotificationService
	Admin        AdminService
	Export       ExportService
	Chat         ChatService
	Feedback     FeedbackService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	infra Infra,
	logger *zap.Logger,
) *Service {
	infra.withDefaults()

	notification := NewNotificationService(repo, infra.Broker, infra.Metrics, logger)

	return &Service{
		Auth:         NewAuthService(cfg, repo, jwtMgr, infra.OTP, infra.OTPLimiter, infra.Blacklist, logger),
		User:         NewUserService(repo, infra.Profiles, logger),
		Department:   NewDepartmentService(repo, infra.Profiles, logger),
		Availability: NewAvailabilityService(&cfg.Scheduler, repo, infra.Metrics, logger),
		Booking:      NewBookingService(repo, notification, infra.Events, infra.Metrics, logger),
		Notification: notification,
		Admin:        NewAdminService(repo, notification, infra.Profiles, infra.Events, infra.Metrics, logger),
		Export:       NewExportService(repo, logger),
		Chat:         NewChatService(infra.Agent, infra.Metrics, logger),
		Feedback:     NewFeedbackService(repo, logger),
	}
}
