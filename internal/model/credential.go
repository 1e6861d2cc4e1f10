package model

import (
	"time"
)

const (
	CredentialStatusConnected = "connected"
	CredentialStatusRevoked   = "revoked"
)

// ChannelCredential 用户绑定的 YouTube 频道授权
// AccessToken / RefreshToken 落库前经 seal 包加密
type ChannelCredential struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	UserID       int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	ChannelID    string    `gorm:"size:100" json:"channel_id"`
	ChannelTitle string    `gorm:"size:200" json:"channel_title"`
	AccessToken  string    `gorm:"type:text" json:"-"`
	RefreshToken string    `gorm:"type:text" json:"-"`
	TokenExpiry  time.Time `json:"-"`
	Status       string    `gorm:"size:20;default:connected" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ChannelCredential) TableName() string {
	return "channel_credentials"
}
