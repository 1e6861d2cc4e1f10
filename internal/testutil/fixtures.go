package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/internal/model"
)

func startOfMonth(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func startOfDay(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	user := &model.User{
		Email:    fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
		Username: fmt.Sprintf("testuser_%d", time.Now().UnixNano()%10000),
		PlanID:   "free",
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithPlan 设置订阅档位
func WithPlan(planID string) func(*model.User) {
	return func(u *model.User) {
		u.PlanID = planID
	}
}

// WithPlanChangedAt 设置档位变更时间
func WithPlanChangedAt(at time.Time) func(*model.User) {
	return func(u *model.User) {
		u.PlanChangedAt = &at
	}
}

// TestCounter 创建测试用量计数器，默认指向当前 UTC 周期
func TestCounter(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.UsageCounter)) *model.UsageCounter {
	t.Helper()

	now := time.Now().UTC()
	counter := &model.UsageCounter{
		UserID:     userID,
		PlanID:     "free",
		MonthStart: startOfMonth(now),
		DayStart:   startOfDay(now),
	}

	for _, opt := range opts {
		opt(counter)
	}

	if err := db.Create(counter).Error; err != nil {
		t.Fatalf("Failed to create test counter: %v", err)
	}

	return counter
}

// WithCounterPlan 设置计数器上的档位快照
func WithCounterPlan(planID string) func(*model.UsageCounter) {
	return func(c *model.UsageCounter) {
		c.PlanID = planID
	}
}

// WithMonthlyUsed 设置本月已用量
func WithMonthlyUsed(n int) func(*model.UsageCounter) {
	return func(c *model.UsageCounter) {
		c.MonthlyReplyCount = n
	}
}

// WithDailyUsed 设置当日已用量
func WithDailyUsed(n int) func(*model.UsageCounter) {
	return func(c *model.UsageCounter) {
		c.DailyPostCount = n
	}
}

// WithQueuedCount 设置排队数量
func WithQueuedCount(n int) func(*model.UsageCounter) {
	return func(c *model.UsageCounter) {
		c.QueuedCount = n
	}
}

// WithMonthStart 设置月窗口起点（用于构造过期周期）
func WithMonthStart(at time.Time) func(*model.UsageCounter) {
	return func(c *model.UsageCounter) {
		c.MonthStart = at
	}
}

// WithDayStart 设置日窗口起点（用于构造过期周期）
func WithDayStart(at time.Time) func(*model.UsageCounter) {
	return func(c *model.UsageCounter) {
		c.DayStart = at
	}
}

// TestQueuedReply 创建测试回复记录，默认 pending
func TestQueuedReply(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.QueuedReply)) *model.QueuedReply {
	t.Helper()

	reply := &model.QueuedReply{
		UserID:      userID,
		CommentID:   fmt.Sprintf("comment_%d", time.Now().UnixNano()),
		VideoID:     "video_1",
		ReplyText:   "感谢观看，欢迎订阅！",
		Status:      model.ReplyStatusPending,
		MaxAttempts: 3,
	}

	for _, opt := range opts {
		opt(reply)
	}

	if err := db.Create(reply).Error; err != nil {
		t.Fatalf("Failed to create test reply: %v", err)
	}

	return reply
}

// WithReplyStatus 设置回复状态
func WithReplyStatus(status string) func(*model.QueuedReply) {
	return func(r *model.QueuedReply) {
		r.Status = status
	}
}

// WithCommentID 设置目标评论
func WithCommentID(commentID string) func(*model.QueuedReply) {
	return func(r *model.QueuedReply) {
		r.CommentID = commentID
	}
}

// WithReplyText 设置回复内容
func WithReplyText(text string) func(*model.QueuedReply) {
	return func(r *model.QueuedReply) {
		r.ReplyText = text
	}
}

// WithAttempts 设置已尝试次数
func WithAttempts(n int) func(*model.QueuedReply) {
	return func(r *model.QueuedReply) {
		r.Attempts = n
	}
}

// WithMaxAttempts 设置最大尝试次数
func WithMaxAttempts(n int) func(*model.QueuedReply) {
	return func(r *model.QueuedReply) {
		r.MaxAttempts = n
	}
}

// WithCreatedTime 设置入队时间（用于排序测试）
func WithCreatedTime(at time.Time) func(*model.QueuedReply) {
	return func(r *model.QueuedReply) {
		r.CreatedAt = at
	}
}

// TestCredential 创建测试频道授权，默认 connected 且 token 未过期
func TestCredential(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.ChannelCredential)) *model.ChannelCredential {
	t.Helper()

	cred := &model.ChannelCredential{
		UserID:       userID,
		ChannelID:    fmt.Sprintf("UC%d", time.Now().UnixNano()%1000000),
		ChannelTitle: "测试频道",
		AccessToken:  "sealed-access-token",
		RefreshToken: "sealed-refresh-token",
		TokenExpiry:  time.Now().UTC().Add(time.Hour),
		Status:       model.CredentialStatusConnected,
	}

	for _, opt := range opts {
		opt(cred)
	}

	if err := db.Create(cred).Error; err != nil {
		t.Fatalf("Failed to create test credential: %v", err)
	}

	return cred
}

// WithCredStatus 设置授权状态
func WithCredStatus(status string) func(*model.ChannelCredential) {
	return func(c *model.ChannelCredential) {
		c.Status = status
	}
}

// WithChannel 设置频道信息
func WithChannel(channelID, title string) func(*model.ChannelCredential) {
	return func(c *model.ChannelCredential) {
		c.ChannelID = channelID
		c.ChannelTitle = title
	}
}

// WithTokens 设置密文 token
func WithTokens(accessToken, refreshToken string) func(*model.ChannelCredential) {
	return func(c *model.ChannelCredential) {
		c.AccessToken = accessToken
		c.RefreshToken = refreshToken
	}
}

// WithTokenExpiry 设置 token 过期时间
func WithTokenExpiry(at time.Time) func(*model.ChannelCredential) {
	return func(c *model.ChannelCredential) {
		c.TokenExpiry = at
	}
}
