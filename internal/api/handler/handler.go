package handler

import "github.com/arunvijo/SmartOPDAgent/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Department   *DepartmentHandler
	Availability *AvailabilityHandler
	Booking      *BookingHandler
	Notification *NotificationHandler
	Chat         *ChatHandler
	Feedback     *FeedbackHandler
	Admin        *AdminHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth),
		User:         NewUserHandler(svc.User),
		Department:   NewDepartmentHandler(svc.Department),
		Availability: NewAvailabilityHandler(svc.Availability),
		Booking:      NewBookingHandler(svc.Booking),
		Notification: NewNotificationHandler(svc.Notification),
		Chat:         NewChatHandler(svc.Chat),
		Feedback:     NewFeedbackHandler(svc.Feedback),
		Admin:        NewAdminHandler(svc.Admin),
		Export:       NewExportHandler(svc.Export),
	}
}
