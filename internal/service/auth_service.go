package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/config"
	"github.com/arunvijo/SmartOPDAgent/internal/access"
	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/identity"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
	"github.com/arunvijo/SmartOPDAgent/internal/repository"
	"github.com/arunvijo/SmartOPDAgent/pkg/jwt"
	"github.com/arunvijo/SmartOPDAgent/pkg/ratelimit"
)

// ── 认证模块业务错误 ──

var (
	ErrInvalidCredentials   = errors.New("邮箱或密码错误")
	ErrUserNotFound         = errors.New("用户不存在")
	ErrEmailExists          = errors.New("该邮箱已注册")
	ErrDoctorFieldsRequired = errors.New("医生注册需选择科室并填写专长")
	ErrOTPInvalid           = errors.New("验证码无效或已过期")
	ErrOTPRateLimited       = errors.New("验证码发送过于频繁，请稍后再试")
	ErrRefreshTokenInvalid  = errors.New("refresh token 无效或已注销")
)

// AuthService 认证业务接口
type AuthService interface {
	SendOTP(ctx context.Context, req *dto.SendOTPRequest) (*dto.OTPResponse, error)
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	// Logout 注销当前 access token；refreshToken 非空时一并注销
	Logout(ctx context.Context, accessClaims *jwt.Claims, refreshToken string) error
	// Session 当前身份快照的对外视图
	Session(snap identity.Snapshot) *dto.SessionResponse
	// Navigate 页面访问决策，供前端路由壳使用
	Navigate(snap identity.Snapshot, path string) *dto.NavigationResponse
}

type authService struct {
	cfg       *config.Config
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	otp       OTPClient
	limiter   ratelimit.Limiter
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
// limiter、blacklist 为 nil 时分别不限流、不做注销校验
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	otpClient OTPClient,
	limiter ratelimit.Limiter,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:       cfg,
		repo:      repo,
		jwtMgr:    jwtMgr,
		otp:       otpClient,
		limiter:   limiter,
		blacklist: blacklist,
		logger:    logger,
	}
}

// ────────────────────── SendOTP ──────────────────────

func (s *authService) SendOTP(ctx context.Context, req *dto.SendOTPRequest) (*dto.OTPResponse, error) {
	email := normalizeEmail(req.Email)

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "otp:"+email)
		if err != nil {
			s.logger.Warn("验证码限流检查失败，放行", zap.Error(err))
		} else if !allowed {
			return nil, ErrOTPRateLimited
		}
	}

	res := s.otp.Send(ctx, email)
	return &dto.OTPResponse{Success: res.Success, Message: res.Message}, nil
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	email := normalizeEmail(req.Email)

	// 1. 角色相关字段校验
	var deptID *string
	var status *string
	if req.Role == model.RoleDoctor {
		if req.DepartmentID == "" || strings.TrimSpace(req.Specialization) == "" {
			return nil, ErrDoctorFieldsRequired
		}
		if _, err := s.repo.Department.GetByID(ctx, req.DepartmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDepartmentNotFound
			}
			s.logger.Error("查询科室失败", zap.Error(err))
			return nil, err
		}
		deptID = &req.DepartmentID
		pending := model.DoctorStatusPending
		status = &pending
	}

	// 2. 邮箱唯一性
	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 3. 校验验证码
	if res := s.otp.Verify(ctx, email, req.OTP); !res.Success {
		s.logger.Info("验证码校验未通过", zap.String("email", email), zap.String("reason", res.Message))
		return nil, ErrOTPInvalid
	}

	// 4. 创建档案
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Email:          email,
		Name:           strings.TrimSpace(req.Name),
		PasswordHash:   string(hash),
		Role:           req.Role,
		Status:         status,
		DepartmentID:   deptID,
		Specialization: strings.TrimSpace(req.Specialization),
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailExists
		}
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("用户注册成功", zap.String("user_id", user.UserID), zap.String("role", user.Role))

	resp, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}
	resp.Next = nextAfterRegister(user)
	return resp, nil
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 生成 Token 对
	resp, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}
	resp.Next = nextAfterLogin(user)
	return resp, nil
}

// ────────────────────── Refresh ──────────────────────

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseTyped(refreshToken, jwt.TokenTypeRefresh)
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}

	if s.blacklist != nil {
		revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("检查令牌黑名单失败", zap.Error(err))
		} else if revoked {
			return nil, ErrRefreshTokenInvalid
		}
	}

	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshTokenInvalid
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 旧 refresh token 轮换后立即失效
	s.revoke(ctx, claims)

	resp, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}
	resp.Next = nextAfterLogin(user)
	return resp, nil
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, accessClaims *jwt.Claims, refreshToken string) error {
	if accessClaims != nil {
		s.revoke(ctx, accessClaims)
	}
	if refreshToken != "" {
		if claims, err := s.jwtMgr.ParseTyped(refreshToken, jwt.TokenTypeRefresh); err == nil {
			s.revoke(ctx, claims)
		}
	}
	return nil
}

// ────────────────────── Session / Navigation ──────────────────────

func (s *authService) Session(snap identity.Snapshot) *dto.SessionResponse {
	resp := &dto.SessionResponse{State: snap.State.String()}
	if snap.IsAuthenticated() && snap.Profile != nil {
		profile := toUserResponse(snap.Profile)
		resp.Profile = &profile
	}
	return resp
}

func (s *authService) Navigate(snap identity.Snapshot, path string) *dto.NavigationResponse {
	group := access.Resolve(path)
	d := access.Decide(snap, group)
	return &dto.NavigationResponse{
		Path:    path,
		Group:   string(group),
		Outcome: string(d.Outcome),
		Target:  d.Target,
	}
}

// ── 内部辅助方法 ──

func (s *authService) revoke(ctx context.Context, claims *jwt.Claims) {
	if s.blacklist == nil {
		s.logger.Warn("未配置 Redis，令牌无法注销", zap.String("user_id", claims.UserID))
		return
	}
	if err := s.blacklist.BlacklistToken(ctx, claims.ID, claims.Remaining()); err != nil {
		s.logger.Error("写入令牌黑名单失败", zap.String("user_id", claims.UserID), zap.Error(err))
	}
}

func (s *authService) issueTokens(user *model.User) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         toUserResponse(user),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nextAfterRegister(user *model.User) string {
	if user.Role == model.RoleDoctor {
		return access.PendingPath
	}
	return access.HomePath
}

func nextAfterLogin(user *model.User) string {
	switch {
	case user.Role == model.RoleAdmin:
		return "/admin/dashboard"
	case user.IsApprovedDoctor():
		return "/doctor/dashboard"
	case user.Role == model.RoleDoctor:
		return access.PendingPath
	default:
		return access.HomePath
	}
}
