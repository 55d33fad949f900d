package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arunvijo/SmartOPDAgent/internal/access"
	"github.com/arunvijo/SmartOPDAgent/internal/identity"
	"github.com/arunvijo/SmartOPDAgent/pkg/response"
)

// IdentityResolver 将 bearer token 解析为身份快照
type IdentityResolver interface {
	Resolve(ctx context.Context, bearer string) identity.Snapshot
}

// Identity 身份解析中间件
// 每个请求解析一次快照并写入请求上下文，未登录也放行，由 RouteGuard 决定是否拦截
func Identity(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		snap := resolver.Resolve(ctx, bearerToken(c))
		c.Request = c.Request.WithContext(identity.WithContext(ctx, snap))

		if snap.IsAuthenticated() {
			c.Set("user_id", snap.Principal)
			c.Set("role", snap.Role())
		}

		c.Next()
	}
}

// RouteGuard 路由分组访问控制
// 身份未解析返回 503 占位；未登录返回 401；角色或审核状态不符时静默返回跳转目标
func RouteGuard(group access.RouteGroup) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := access.Decide(identity.FromContext(c.Request.Context()), group)

		switch {
		case d.Outcome == access.Loading:
			response.Loading(c)
			c.Abort()
			return
		case d.Outcome == access.Redirect && d.Target == access.LoginPath:
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		case d.Outcome == access.Redirect:
			response.Redirect(c, http.StatusForbidden, 10003, d.Target)
			c.Abort()
			return
		}

		c.Next()
	}
}

// bearerToken 从 Authorization: Bearer <token> 提取令牌
// EventSource 无法设置请求头，SSE 连接可改用 access_token 查询参数
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return c.Query("access_token")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
