// Package identity 将会话令牌解析为三态身份快照。
//
// 快照只会处于 Unresolved、Unauthenticated、Authenticated 三者之一。
// 已认证但档案缺失或读取失败时 Profile 为 nil，表示“无角色”，不视为错误。
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/internal/model"
	"github.com/arunvijo/SmartOPDAgent/pkg/jwt"
	"github.com/arunvijo/SmartOPDAgent/pkg/redis"
)

// State 身份解析状态
type State int

const (
	Unresolved State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "unresolved"
	}
}

// MarshalText 以字符串形式输出
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot 某一时刻的身份快照
type Snapshot struct {
	State     State
	Principal string
	Profile   *model.User
	// TokenID 当前 access token 的 jti，注销时加入黑名单
	TokenID   string
	ExpiresIn time.Duration
}

// UnauthenticatedSnapshot 未登录快照
func UnauthenticatedSnapshot() Snapshot {
	return Snapshot{State: Unauthenticated}
}

// AuthenticatedSnapshot 已登录快照；profile 可为 nil
func AuthenticatedSnapshot(principal string, profile *model.User) Snapshot {
	return Snapshot{State: Authenticated, Principal: principal, Profile: profile}
}

// IsAuthenticated 是否已登录
func (s Snapshot) IsAuthenticated() bool { return s.State == Authenticated }

// Role 返回档案角色；无档案时为空字符串
func (s Snapshot) Role() string {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}

// ── 依赖接口 ──

// ProfileStore 档案读取
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// TokenParser 令牌解析
type TokenParser interface {
	ParseTyped(token, tokenType string) (*jwt.Claims, error)
}

// Blacklist 令牌黑名单
type Blacklist interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// ProfileCache 档案缓存
type ProfileCache interface {
	GetProfile(ctx context.Context, userID string) ([]byte, error)
	SetProfile(ctx context.Context, userID string, data []byte, ttl time.Duration) error
	DeleteProfile(ctx context.Context, userID string) error
}

// Gate 身份闸门
type Gate struct {
	tokens       TokenParser
	profiles     ProfileStore
	blacklist    Blacklist
	cache        ProfileCache
	fetchTimeout time.Duration
	cacheTTL     time.Duration
	logger       *zap.Logger
}

// Option Gate 可选配置
type Option func(*Gate)

// WithBlacklist 启用令牌黑名单检查
func WithBlacklist(b Blacklist) Option {
	return func(g *Gate) { g.blacklist = b }
}

// WithProfileCache 启用档案缓存
func WithProfileCache(c ProfileCache, ttl time.Duration) Option {
	return func(g *Gate) {
		g.cache = c
		g.cacheTTL = ttl
	}
}

// NewGate 创建身份闸门
func NewGate(tokens TokenParser, profiles ProfileStore, fetchTimeout time.Duration, logger *zap.Logger, opts ...Option) *Gate {
	g := &Gate{
		tokens:       tokens,
		profiles:     profiles,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve 解析 bearer token 为身份快照，结果必然离开 Unresolved
func (g *Gate) Resolve(ctx context.Context, bearer string) Snapshot {
	if bearer == "" {
		return UnauthenticatedSnapshot()
	}

	claims, err := g.tokens.ParseTyped(bearer, jwt.TokenTypeAccess)
	if err != nil {
		return UnauthenticatedSnapshot()
	}

	if g.blacklist != nil {
		revoked, err := g.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			// Redis 异常时降级放行
			g.logger.Warn("检查令牌黑名单失败", zap.String("user_id", claims.UserID), zap.Error(err))
		} else if revoked {
			return UnauthenticatedSnapshot()
		}
	}

	snap := AuthenticatedSnapshot(claims.UserID, g.loadProfile(ctx, claims.UserID))
	snap.TokenID = claims.ID
	snap.ExpiresIn = claims.Remaining()
	return snap
}

// Invalidate 删除档案缓存，档案变更后调用
func (g *Gate) Invalidate(ctx context.Context, userID string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.DeleteProfile(ctx, userID); err != nil {
		g.logger.Warn("删除档案缓存失败", zap.String("user_id", userID), zap.Error(err))
	}
}

// ── 内部辅助方法 ──

func (g *Gate) loadProfile(ctx context.Context, userID string) *model.User {
	if p := g.cachedProfile(ctx, userID); p != nil {
		return p
	}

	fetchCtx := ctx
	if g.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, g.fetchTimeout)
		defer cancel()
	}

	profile, err := g.profiles.GetByID(fetchCtx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			g.logger.Info("已登录用户无档案", zap.String("user_id", userID))
		} else {
			g.logger.Warn("读取用户档案失败", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}

	g.storeProfile(ctx, profile)
	return profile
}

func (g *Gate) cachedProfile(ctx context.Context, userID string) *model.User {
	if g.cache == nil {
		return nil
	}
	data, err := g.cache.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			g.logger.Warn("读取档案缓存失败", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	var p cachedUser
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	return p.toModel()
}

func (g *Gate) storeProfile(ctx context.Context, profile *model.User) {
	if g.cache == nil {
		return
	}
	data, err := json.Marshal(fromModel(profile))
	if err != nil {
		return
	}
	if err := g.cache.SetProfile(ctx, profile.UserID, data, g.cacheTTL); err != nil {
		g.logger.Warn("写入档案缓存失败", zap.String("user_id", profile.UserID), zap.Error(err))
	}
}

// cachedUser 缓存中的档案字段，不含密码哈希
type cachedUser struct {
	UserID         string  `json:"user_id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	Status         *string `json:"status,omitempty"`
	DepartmentID   *string `json:"department_id,omitempty"`
	Specialization string  `json:"specialization,omitempty"`
	Age            *int    `json:"age,omitempty"`
	Insurance      string  `json:"insurance,omitempty"`
	AvatarURL      string  `json:"avatar_url,omitempty"`
}

func fromModel(u *model.User) cachedUser {
	return cachedUser{
		UserID:         u.UserID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		Status:         u.Status,
		DepartmentID:   u.DepartmentID,
		Specialization: u.Specialization,
		Age:            u.Age,
		Insurance:      u.Insurance,
		AvatarURL:      u.AvatarURL,
	}
}

func (c cachedUser) toModel() *model.User {
	return &model.User{
		UserID:         c.UserID,
		Email:          c.Email,
		Name:           c.Name,
		Role:           c.Role,
		Status:         c.Status,
		DepartmentID:   c.DepartmentID,
		Specialization: c.Specialization,
		Age:            c.Age,
		Insurance:      c.Insurance,
		AvatarURL:      c.AvatarURL,
	}
}

// ── 请求上下文 ──

type ctxKey struct{}

// WithContext 将快照写入 context
func WithContext(ctx context.Context, s Snapshot) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext 读取快照；未经闸门解析的 context 返回 Unresolved
func FromContext(ctx context.Context) Snapshot {
	if s, ok := ctx.Value(ctxKey{}).(Snapshot); ok {
		return s
	}
	return Snapshot{State: Unresolved}
}
