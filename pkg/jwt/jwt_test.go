package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/arunvijo/SmartOPDAgent/config"
)

func newTestManager() *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret:       "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
}

func TestGenerateAndParseAccessToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateAccessToken("user-1")
	if err != nil {
		t.Fatalf("GenerateAccessToken 失败: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken 失败: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("期望 UserID=user-1，实际=%s", claims.UserID)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Errorf("期望 TokenType=access，实际=%s", claims.TokenType)
	}
	if claims.Issuer != "smart-opd" {
		t.Errorf("期望 Issuer=smart-opd，实际=%s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("JTI 不应为空")
	}
	if r := claims.Remaining(); r <= 0 || r > 15*time.Minute {
		t.Errorf("剩余有效期异常: %v", r)
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateRefreshToken("user-1")
	if err != nil {
		t.Fatalf("GenerateRefreshToken 失败: %v", err)
	}

	claims, err := m.ParseTyped(token, TokenTypeRefresh)
	if err != nil {
		t.Fatalf("ParseTyped 失败: %v", err)
	}

	// 检查过期时间约为 24h
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl < 23*time.Hour || ttl > 25*time.Hour {
		t.Errorf("RefreshToken TTL 期望约24h，实际=%v", ttl)
	}
}

func TestParseTyped_WrongType(t *testing.T) {
	m := newTestManager()

	token, _ := m.GenerateRefreshToken("user-1")
	if _, err := m.ParseTyped(token, TokenTypeAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("refresh token 不应作为 access token 使用，实际: %v", err)
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	m := newTestManager()

	_, err := m.ParseToken("invalid.token.string")
	if err == nil {
		t.Error("期望解析无效 token 返回错误")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	m1 := newTestManager()
	m2 := NewManager(&config.AuthConfig{
		JWTSecret:      "different-secret-key",
		AccessTokenTTL: 15 * time.Minute,
	})

	token, _ := m1.GenerateAccessToken("user-1")
	if _, err := m2.ParseToken(token); err == nil {
		t.Error("不同密钥签名的 token 不应通过验证")
	}
}

func TestParseToken_ExpiredToken(t *testing.T) {
	m := NewManager(&config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  1 * time.Millisecond,
		RefreshTokenTTL: 1 * time.Millisecond,
	})

	token, _ := m.GenerateAccessToken("user-1")
	time.Sleep(10 * time.Millisecond)

	_, err := m.ParseToken(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}

func TestRevocationClaims(t *testing.T) {
	claims := RevocationClaims("user-1", "jti-1", time.Minute)
	if claims.ID != "jti-1" || claims.UserID != "user-1" {
		t.Errorf("声明字段错误: %+v", claims)
	}
	if r := claims.Remaining(); r <= 0 || r > time.Minute {
		t.Errorf("剩余有效期应在 (0, 1m]，实际=%v", r)
	}
}
