package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelReplyEvents = "reply_events"
)

// 事件状态常量，与队列记录的状态对应（queued 对应记录的 pending）
const (
	StatusQueued = "queued"
	StatusPosted = "posted"
	StatusFailed = "failed"
)

// 状态对应的默认消息
var StatusMessages = map[string]string{
	StatusQueued: "回复已加入发布队列",
	StatusPosted: "回复已发布",
	StatusFailed: "回复发布失败",
}

// ReplyEvent 回复状态变更事件
// worker 发布，API 进程订阅后经 WebSocket 推给用户
type ReplyEvent struct {
	Type      string `json:"type"`
	UserID    int64  `json:"user_id"`
	ReplyID   int64  `json:"reply_id"`
	CommentID string `json:"comment_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishReplyEvent 发布回复状态变更
func (p *Publisher) PublishReplyEvent(ctx context.Context, msg *ReplyEvent) error {
	msg.Type = "reply_update"

	// 自动填充默认消息
	if msg.Message == "" && msg.Status != "" {
		if message, ok := StatusMessages[msg.Status]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	return p.client.Publish(ctx, ChannelReplyEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅回复事件，阻塞直到 ctx 取消
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ReplyEvent)) error {
	pubsub := s.client.Subscribe(ctx, ChannelReplyEvents)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event ReplyEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue // 忽略解析错误
			}

			handler(&event)
		}
	}
}
