package ai

import (
	"context"
	"strings"
)

// MockProvider 本地开发用的固定草稿生成器，不调外部 API
// 配置 api_provider: mock 即可在没有密钥的环境跑通整个链路
type MockProvider struct {
	// Response 设置后固定返回该内容
	Response string
	// Err 设置后固定返回该错误
	Err error
	// Calls 调用计数
	Calls int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// DraftReply 把评论开头拼进一条可辨认的固定草稿
func (p *MockProvider) DraftReply(ctx context.Context, input *DraftInput) (string, error) {
	p.Calls++
	if p.Err != nil {
		return "", p.Err
	}
	if p.Response != "" {
		return p.Response, nil
	}

	words := strings.Fields(input.CommentText)
	if len(words) > 6 {
		words = words[:6]
	}
	echo := strings.Join(words, " ")
	if echo == "" {
		return "感谢你的留言，很高兴这期视频对你有帮助！", nil
	}
	return "感谢你的留言（" + echo + "…），很高兴这期视频对你有帮助！", nil
}
