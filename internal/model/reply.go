package model

import (
	"time"
)

const (
	ReplyStatusPending = "pending"
	ReplyStatusPosted  = "posted"
	ReplyStatusFailed  = "failed"
)

// QueuedReply 回复投递记录
// pending 的记录由派发器按 created_at 先后顺序发布
type QueuedReply struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	UserID        int64      `gorm:"index;not null" json:"user_id"`
	CommentID     string     `gorm:"size:100;not null" json:"comment_id"`
	VideoID       string     `gorm:"size:50" json:"video_id"`
	ReplyText     string     `gorm:"type:text;not null" json:"reply_text"`
	Status        string     `gorm:"size:20;default:pending;index" json:"status"`
	Attempts      int        `gorm:"default:0" json:"attempts"`
	MaxAttempts   int        `gorm:"default:3" json:"max_attempts"`
	ErrorMessage  string     `gorm:"size:500" json:"error_message,omitempty"`
	PostedReplyID string     `gorm:"size:100" json:"posted_reply_id,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
}

func (QueuedReply) TableName() string {
	return "queued_replies"
}
