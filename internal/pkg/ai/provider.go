package ai

import (
	"context"
	"fmt"

	"github.com/qs3c/reply_go_server/config"
)

// DraftInput 生成草稿所需的评论上下文
type DraftInput struct {
	CommentText string
	VideoTitle  string
	Tone        string
}

// Provider 回复草稿生成器
type Provider interface {
	DraftReply(ctx context.Context, input *DraftInput) (string, error)
}

// New 根据模型配置选择提供方，api_base_url 兼容 OpenAI 协议的第三方服务
func New(cfg *config.ModelConfig) (Provider, error) {
	switch cfg.APIProvider {
	case "openai", "":
		return NewOpenAIProvider(cfg), nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported api provider: %s", cfg.APIProvider)
	}
}
