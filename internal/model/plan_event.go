package model

import (
	"time"
)

// PlanChangeEvent 外部订阅系统推送的计划变更事件
// EventID 唯一索引用于去重，重复投递直接忽略
type PlanChangeEvent struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	EventID     string    `gorm:"size:100;uniqueIndex;not null" json:"event_id"`
	UserID      int64     `gorm:"index;not null" json:"user_id"`
	PlanID      string    `gorm:"size:20;not null" json:"plan_id"`
	EffectiveAt time.Time `gorm:"not null" json:"effective_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (PlanChangeEvent) TableName() string {
	return "plan_change_events"
}
