package dto

// ── 聊天模块 DTO ──

// ChatRequest 聊天消息
type ChatRequest struct {
	Message string `json:"message" binding:"required,max=4000"`
}

// ChatResponse 导诊回复；Fallback=true 表示导诊服务不可用时的兜底文案
type ChatResponse struct {
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"`
}

// GreetingResponse 欢迎语
type GreetingResponse struct {
	Message string `json:"message"`
}
