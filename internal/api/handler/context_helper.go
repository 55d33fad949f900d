package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arunvijo/SmartOPDAgent/internal/identity"
	"github.com/arunvijo/SmartOPDAgent/pkg/response"
)

// currentSnapshot 读取 Identity 中间件写入的身份快照
func currentSnapshot(c *gin.Context) identity.Snapshot {
	return identity.FromContext(c.Request.Context())
}

// MustGetUserID 从身份快照中提取当前用户 ID。
// 未登录时写入 401 响应并返回 false，调用方应直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	snap := currentSnapshot(c)
	if !snap.IsAuthenticated() || snap.Principal == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return snap.Principal, true
}

// MustGetIntParam 解析非负整数路径参数
func MustGetIntParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v < 0 {
		response.BadRequest(c, 10001, name+" 必须为非负整数")
		return 0, false
	}
	return v, true
}

// MustGetUUIDParam 校验 UUID 路径参数，非法值在进入数据库前返回 400
func MustGetUUIDParam(c *gin.Context, name, label string) (string, bool) {
	v := c.Param(name)
	if _, err := uuid.Parse(v); err != nil {
		response.BadRequest(c, 10001, label+"格式无效")
		return "", false
	}
	return v, true
}
