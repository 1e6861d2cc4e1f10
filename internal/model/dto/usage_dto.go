package dto

// DimensionUsage 单个配额维度的用量
// Unlimited 为 true 时 Limit 无意义
type DimensionUsage struct {
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Unlimited bool   `json:"unlimited"`
	ResetAt   string `json:"reset_at"`
}

// UsageInfo 当前用户用量总览
type UsageInfo struct {
	PlanID      string         `json:"plan_id"`
	Monthly     DimensionUsage `json:"monthly_replies"`
	Daily       DimensionUsage `json:"daily_posts"`
	QueuedCount int            `json:"queued_count"`
}
