package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/config"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
	"github.com/arunvijo/SmartOPDAgent/pkg/jwt"
	"github.com/arunvijo/SmartOPDAgent/pkg/redis"
)

type stubProfiles struct {
	users map[string]*model.User
	err   error
	delay time.Duration
	calls int
}

func (s *stubProfiles) GetByID(ctx context.Context, id string) (*model.User, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

type stubBlacklist map[string]bool

func (b stubBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return b[jti], nil
}

type memCache map[string][]byte

func (m memCache) GetProfile(_ context.Context, id string) ([]byte, error) {
	b, ok := m[id]
	if !ok {
		return nil, redis.ErrCacheMiss
	}
	return b, nil
}

func (m memCache) SetProfile(_ context.Context, id string, data []byte, _ time.Duration) error {
	m[id] = data
	return nil
}

func (m memCache) DeleteProfile(_ context.Context, id string) error {
	delete(m, id)
	return nil
}

func newTokens() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:       "identity-test-secret-0123456789",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
}

func doctor(id, status string) *model.User {
	return &model.User{UserID: id, Email: id + "@opd.test", Role: model.RoleDoctor, Status: &status}
}

func TestGate_Resolve_NoToken(t *testing.T) {
	g := NewGate(newTokens(), &stubProfiles{}, time.Second, zap.NewNop())
	snap := g.Resolve(context.Background(), "")
	assert.Equal(t, Unauthenticated, snap.State)
	assert.Nil(t, snap.Profile)
}

func TestGate_Resolve_InvalidToken(t *testing.T) {
	g := NewGate(newTokens(), &stubProfiles{}, time.Second, zap.NewNop())
	snap := g.Resolve(context.Background(), "not-a-token")
	assert.Equal(t, Unauthenticated, snap.State)
}

func TestGate_Resolve_RefreshTokenRejected(t *testing.T) {
	tokens := newTokens()
	refresh, err := tokens.GenerateRefreshToken("u-1")
	require.NoError(t, err)

	g := NewGate(tokens, &stubProfiles{}, time.Second, zap.NewNop())
	assert.Equal(t, Unauthenticated, g.Resolve(context.Background(), refresh).State)
}

func TestGate_Resolve_WithProfile(t *testing.T) {
	tokens := newTokens()
	token, err := tokens.GenerateAccessToken("doc-1")
	require.NoError(t, err)

	store := &stubProfiles{users: map[string]*model.User{"doc-1": doctor("doc-1", model.DoctorStatusApproved)}}
	g := NewGate(tokens, store, time.Second, zap.NewNop())

	snap := g.Resolve(context.Background(), token)
	require.Equal(t, Authenticated, snap.State)
	assert.Equal(t, "doc-1", snap.Principal)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, model.RoleDoctor, snap.Role())
	assert.NotEmpty(t, snap.TokenID)
}

func TestGate_Resolve_ProfileMissing(t *testing.T) {
	tokens := newTokens()
	token, _ := tokens.GenerateAccessToken("ghost")

	g := NewGate(tokens, &stubProfiles{users: map[string]*model.User{}}, time.Second, zap.NewNop())
	snap := g.Resolve(context.Background(), token)

	assert.Equal(t, Authenticated, snap.State)
	assert.Nil(t, snap.Profile)
	assert.Equal(t, "", snap.Role())
}

func TestGate_Resolve_ProfileFetchFailure(t *testing.T) {
	tokens := newTokens()
	token, _ := tokens.GenerateAccessToken("u-1")

	g := NewGate(tokens, &stubProfiles{err: errors.New("connection refused")}, time.Second, zap.NewNop())
	snap := g.Resolve(context.Background(), token)

	assert.Equal(t, Authenticated, snap.State, "读取失败也必须离开 Unresolved")
	assert.Nil(t, snap.Profile)
}

func TestGate_Resolve_ProfileFetchTimeout(t *testing.T) {
	tokens := newTokens()
	token, _ := tokens.GenerateAccessToken("u-1")

	store := &stubProfiles{
		users: map[string]*model.User{"u-1": {UserID: "u-1", Role: model.RolePatient}},
		delay: time.Second,
	}
	g := NewGate(tokens, store, 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	snap := g.Resolve(context.Background(), token)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, Authenticated, snap.State)
	assert.Nil(t, snap.Profile)
}

func TestGate_Resolve_Blacklisted(t *testing.T) {
	tokens := newTokens()
	token, _ := tokens.GenerateAccessToken("u-1")
	claims, _ := tokens.ParseToken(token)

	store := &stubProfiles{users: map[string]*model.User{"u-1": {UserID: "u-1", Role: model.RolePatient}}}
	g := NewGate(tokens, store, time.Second, zap.NewNop(), WithBlacklist(stubBlacklist{claims.ID: true}))

	assert.Equal(t, Unauthenticated, g.Resolve(context.Background(), token).State)
}

func TestGate_Resolve_CacheAndInvalidate(t *testing.T) {
	tokens := newTokens()
	token, _ := tokens.GenerateAccessToken("doc-1")

	store := &stubProfiles{users: map[string]*model.User{"doc-1": doctor("doc-1", model.DoctorStatusPending)}}
	cache := memCache{}
	g := NewGate(tokens, store, time.Second, zap.NewNop(), WithProfileCache(cache, time.Minute))

	first := g.Resolve(context.Background(), token)
	require.NotNil(t, first.Profile)
	assert.Equal(t, model.DoctorStatusPending, first.Profile.EffectiveStatus())

	// 命中缓存，不再读库
	store.users["doc-1"] = doctor("doc-1", model.DoctorStatusApproved)
	cached := g.Resolve(context.Background(), token)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, model.DoctorStatusPending, cached.Profile.EffectiveStatus())

	// 状态变更后失效缓存，下一次解析看到新状态
	g.Invalidate(context.Background(), "doc-1")
	fresh := g.Resolve(context.Background(), token)
	assert.Equal(t, 2, store.calls)
	assert.Equal(t, model.DoctorStatusApproved, fresh.Profile.EffectiveStatus())
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, Unresolved, FromContext(context.Background()).State)

	ctx := WithContext(context.Background(), AuthenticatedSnapshot("u-1", nil))
	snap := FromContext(ctx)
	assert.Equal(t, Authenticated, snap.State)
	assert.Equal(t, "u-1", snap.Principal)
}
