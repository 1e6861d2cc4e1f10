package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/qs3c/reply_go_server/config"
)

var toneInstructions = map[string]string{
	"friendly":     "Warm and appreciative, like chatting with a fan.",
	"professional": "Polite and informative, suitable for a brand channel.",
	"humorous":     "Lighthearted with a touch of humor, never sarcastic at the commenter's expense.",
}

type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(cfg *config.ModelConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBaseURL != "" {
		clientConfig.BaseURL = cfg.APIBaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Name,
	}
}

func (p *OpenAIProvider) DraftReply(ctx context.Context, input *DraftInput) (string, error) {
	resp, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: p.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: p.systemPrompt(input.Tone),
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: p.userPrompt(input),
				},
			},
			MaxTokens:   500,
			Temperature: 0.7,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate draft: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ai: empty completion response")
	}

	draft := strings.TrimSpace(resp.Choices[0].Message.Content)
	if draft == "" {
		return "", errors.New("ai: model returned empty draft")
	}

	return draft, nil
}

func (p *OpenAIProvider) systemPrompt(tone string) string {
	instruction, ok := toneInstructions[tone]
	if !ok {
		instruction = toneInstructions["friendly"]
	}

	return "You are the channel owner replying to a viewer comment on your own YouTube video. " +
		"Write a single reply in the same language as the comment. " +
		"Keep it under 3 sentences, no hashtags, no emojis unless the comment uses them. " +
		"Tone: " + instruction
}

func (p *OpenAIProvider) userPrompt(input *DraftInput) string {
	var sb strings.Builder
	if input.VideoTitle != "" {
		sb.WriteString("Video title: ")
		sb.WriteString(input.VideoTitle)
		sb.WriteString("\n")
	}
	sb.WriteString("Viewer comment:\n")
	sb.WriteString(input.CommentText)
	return sb.String()
}
