package model

import (
	"time"
)

type User struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	Email         string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Username      string     `gorm:"size:50;not null" json:"username"`
	AvatarURL     string     `gorm:"size:500" json:"avatar_url"`
	PlanID        string     `gorm:"size:20;default:free" json:"plan_id"`
	PlanChangedAt *time.Time `json:"plan_changed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
