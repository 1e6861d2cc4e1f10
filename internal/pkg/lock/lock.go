package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 只有持有者能释放锁
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

// Mutex 基于 Redis SET NX 的派发互斥锁
// 只用来避免多实例同时跑派发空耗资源，配额正确性由计数器的原子扣减兜底
type Mutex struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

func NewMutex(client *redis.Client, key string, ttl time.Duration) *Mutex {
	return &Mutex{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// TryLock 尝试加锁，已被占用时返回 false
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return false, err
	}
	token := hex.EncodeToString(buf)

	ok, err := m.client.SetNX(ctx, m.key, token, m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if ok {
		m.token = token
	}
	return ok, nil
}

// Unlock 释放自己持有的锁，锁已过期或被他人持有时不报错
func (m *Mutex) Unlock(ctx context.Context) error {
	if m.token == "" {
		return nil
	}
	defer func() { m.token = "" }()

	return unlockScript.Run(ctx, m.client, []string{m.key}, m.token).Err()
}
