package dto

// ── 通知模块 DTO ──

// NotificationResponse 通知
type NotificationResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// NotificationFeed 一次完整推送：列表 + 未读数，整体替换上一次结果
type NotificationFeed struct {
	Items  []NotificationResponse `json:"items"`
	Unread int64                  `json:"unread"`
}

// UnreadCountResponse 未读数
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

// MarkAllReadResponse 全部已读结果
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
