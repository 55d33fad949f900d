package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/config"
	"github.com/arunvijo/SmartOPDAgent/internal/access"
	"github.com/arunvijo/SmartOPDAgent/internal/api/handler"
	"github.com/arunvijo/SmartOPDAgent/internal/api/middleware"
	"github.com/arunvijo/SmartOPDAgent/pkg/metrics"
	"github.com/arunvijo/SmartOPDAgent/pkg/ratelimit"
)

// Deps 路由层依赖；Limiter、Metrics 可为空
type Deps struct {
	Identity middleware.IdentityResolver
	Limiter  ratelimit.Limiter
	Metrics  *metrics.Collector
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, deps Deps, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing(cfg.Tracing.ServiceName))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimitBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Identity(deps.Identity))
	{
		limited := middleware.RateLimit(deps.Limiter, logger)

		// 公开路由
		v1.GET("/navigation", h.Auth.Navigation)
		v1.GET("/departments", h.Department.ListDepartments)

		auth := v1.Group("/auth")
		{
			auth.GET("/session", h.Auth.Session)
			auth.POST("/otp/send", limited, h.Auth.SendOTP)
			auth.POST("/register", limited, h.Auth.Register)
			auth.POST("/login", limited, h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要登录的路由
		authorized := v1.Group("")
		authorized.Use(middleware.RouteGuard(access.GroupAuthenticated))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)

			// 用户模块
			users := authorized.Group("/users")
			{
				users.GET("/me", h.User.GetCurrentUser)
				users.PUT("/me", h.User.UpdateCurrentUser)
			}

			// 导诊对话
			chat := authorized.Group("/chat")
			{
				chat.POST("", h.Chat.Send)
				chat.GET("/greeting", h.Chat.Greeting)
			}

			authorized.POST("/feedback", h.Feedback.Submit)

			// 预约模块
			bookings := authorized.Group("/bookings")
			{
				bookings.GET("", h.Booking.ListBookings)
				bookings.GET("/upcoming", h.Booking.ListUpcoming)
				bookings.POST("", h.Booking.CreateBooking)
				bookings.GET("/calendar.ics", h.Booking.Calendar)
			}

			authorized.GET("/doctors/:id/availability", h.Availability.GetDoctorDay)

			// 通知模块
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.ListNotifications)
				notifications.GET("/unread-count", h.Notification.UnreadCount)
				notifications.GET("/stream", h.Notification.Stream)
				notifications.PUT("/read-all", h.Notification.MarkAllRead)
				notifications.PUT("/:id/read", h.Notification.MarkRead)
			}

			// 医生端（已通过审核的医生）
			doctor := authorized.Group("/doctor")
			doctor.Use(middleware.RouteGuard(access.GroupDoctor))
			{
				doctor.GET("/availability", h.Availability.GetMyDay)
				doctor.POST("/availability", h.Availability.GenerateDay)
				doctor.PUT("/availability/:date/slots/:index/toggle", h.Availability.ToggleSlot)
			}

			// 管理端
			admin := authorized.Group("/admin")
			admin.Use(middleware.RouteGuard(access.GroupAdmin))
			{
				admin.GET("/stats", h.Admin.Stats)
				admin.GET("/doctors", h.Admin.ListDoctors)
				admin.PUT("/doctors/:id/approve", h.Admin.ApproveDoctor)
				admin.PUT("/doctors/:id/reject", h.Admin.RejectDoctor)
				admin.GET("/departments", h.Department.ListDepartments)
				admin.POST("/departments", h.Department.CreateDepartment)
				admin.DELETE("/departments/:id", h.Department.DeleteDepartment)
				admin.GET("/users", h.Admin.ListUsers)
				admin.GET("/users/export", h.Export.ExportUsers)
				admin.GET("/feedback", h.Admin.ListFeedback)
			}
		}
	}

	return r
}
