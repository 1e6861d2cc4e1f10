package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Queue 派发唤醒队列
// 回复入队后推一条消息，worker 侧阻塞等待，立刻触发一轮派发而不必等定时器
type Queue struct {
	client    *redis.Client
	queueName string
}

// NotifyMessage 唤醒消息
type NotifyMessage struct {
	UserID     int64     `json:"user_id"`
	Reason     string    `json:"reason"` // enqueue / retry / manual
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func NewQueue(client *redis.Client, queueName string) *Queue {
	return &Queue{
		client:    client,
		queueName: queueName,
	}
}

// Push 推入唤醒消息
func (q *Queue) Push(ctx context.Context, msg *NotifyMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.client.LPush(ctx, q.queueName, data).Err()
}

// Pop 阻塞等待唤醒消息，超时返回 (nil, nil)
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*NotifyMessage, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 超时，无消息
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}

	var msg NotifyMessage
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	return &msg, nil
}

// Drain 清空积压的唤醒消息
// 一轮派发已经覆盖了之前所有入队，积压消息只会触发空转
func (q *Queue) Drain(ctx context.Context) error {
	return q.client.Del(ctx, q.queueName).Err()
}

// Length 获取队列长度
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}
