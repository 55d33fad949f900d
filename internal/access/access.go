// Package access 根据身份快照决定页面路由分组的访问结果。
package access

import (
	"strings"

	"github.com/arunvijo/SmartOPDAgent/internal/identity"
	"github.com/arunvijo/SmartOPDAgent/internal/model"
)

// RouteGroup 路由分组
type RouteGroup string

const (
	GroupPublic        RouteGroup = "public"
	GroupAuthenticated RouteGroup = "authenticated"
	GroupDoctor        RouteGroup = "doctor"
	GroupAdmin         RouteGroup = "admin"
)

// 跳转目标
const (
	LoginPath   = "/login"
	HomePath    = "/"
	PendingPath = "/doctor/pending"
)

// Outcome 访问决策结果
type Outcome string

const (
	Loading  Outcome = "loading"
	Render   Outcome = "render"
	Redirect Outcome = "redirect"
)

// Decision 访问决策；仅 Outcome 为 Redirect 时 Target 非空
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Target  string  `json:"target,omitempty"`
}

func redirectTo(target string) Decision {
	return Decision{Outcome: Redirect, Target: target}
}

// Role 单次导航解析出的角色
type Role struct {
	Kind   string // patient | doctor | admin | ""（无档案）
	Status string // 仅 doctor 有意义
}

// RoleOf 从快照解析角色
func RoleOf(s identity.Snapshot) Role {
	if s.Profile == nil {
		return Role{}
	}
	r := Role{Kind: s.Profile.Role}
	if r.Kind == model.RoleDoctor {
		r.Status = s.Profile.EffectiveStatus()
	}
	return r
}

// Decide 纯函数：按顺序应用规则
func Decide(s identity.Snapshot, group RouteGroup) Decision {
	if s.State == identity.Unresolved {
		return Decision{Outcome: Loading}
	}
	if group == GroupPublic {
		return Decision{Outcome: Render}
	}
	if s.State != identity.Authenticated {
		return redirectTo(LoginPath)
	}

	role := RoleOf(s)
	switch group {
	case GroupDoctor:
		if role.Kind != model.RoleDoctor || role.Status != model.DoctorStatusApproved {
			return redirectTo(HomePath)
		}
	case GroupAdmin:
		if role.Kind != model.RoleAdmin {
			return redirectTo(HomePath)
		}
	}
	return Decision{Outcome: Render}
}

var publicPages = map[string]bool{
	LoginPath:   true,
	"/signup":   true,
	PendingPath: true,
}

// Resolve 将页面路径映射到路由分组
func Resolve(path string) RouteGroup {
	p := normalize(path)
	switch {
	case publicPages[p]:
		return GroupPublic
	case p == "/doctor" || strings.HasPrefix(p, "/doctor/"):
		return GroupDoctor
	case p == "/admin" || strings.HasPrefix(p, "/admin/"):
		return GroupAdmin
	default:
		return GroupAuthenticated
	}
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
