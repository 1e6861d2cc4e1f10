package model

import (
	"time"
)

// UsageCounter 用户用量计数器，每个用户一行
// 月度/日度窗口均为 UTC 日历周期，滚动由带条件的 UPDATE 保证幂等
type UsageCounter struct {
	ID                int64      `gorm:"primaryKey" json:"id"`
	UserID            int64      `gorm:"uniqueIndex;not null" json:"user_id"`
	PlanID            string     `gorm:"size:20;default:free" json:"plan_id"`
	MonthlyReplyCount int        `gorm:"default:0" json:"monthly_reply_count"`
	MonthStart        time.Time  `gorm:"not null" json:"month_start"`
	DailyPostCount    int        `gorm:"default:0" json:"daily_post_count"`
	DayStart          time.Time  `gorm:"not null" json:"day_start"`
	QueuedCount       int        `gorm:"default:0" json:"queued_count"`
	PlanChangedAt     *time.Time `json:"plan_changed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (UsageCounter) TableName() string {
	return "usage_counters"
}
