package dto

import "time"

// ChannelStatus 频道绑定状态
type ChannelStatus struct {
	Connected    bool   `json:"connected"`
	ChannelID    string `json:"channel_id,omitempty"`
	ChannelTitle string `json:"channel_title,omitempty"`
	ConnectedAt  string `json:"connected_at,omitempty"`
}

// ConnectChannelResponse 发起频道授权响应
type ConnectChannelResponse struct {
	AuthURL string `json:"auth_url"`
}

// PlanChangeRequest 订阅系统推送的计划变更事件（内部接口）
type PlanChangeRequest struct {
	EventID     string    `json:"event_id" binding:"required,max=100"`
	UserID      int64     `json:"user_id" binding:"required"`
	PlanID      string    `json:"plan_id" binding:"required,max=20"`
	EffectiveAt time.Time `json:"effective_at" binding:"required"`
}
