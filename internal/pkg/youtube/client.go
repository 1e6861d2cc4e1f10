package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qs3c/reply_go_server/config"
)

const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

var (
	// ErrTokenInvalid 授权失效或权限不足，重试无意义，需要用户重新连接频道
	ErrTokenInvalid = errors.New("youtube: token invalid or insufficient permissions")
	// ErrCommentGone 目标评论已被删除，重试无意义
	ErrCommentGone = errors.New("youtube: comment not found or deleted")
)

// Client YouTube Data API v3 客户端，只封装本服务用到的两个调用
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Channel 频道基本信息
type Channel struct {
	ID    string
	Title string
}

func NewClient(cfg *config.YouTubeConfig) *Client {
	baseURL := DefaultBaseURL
	if cfg != nil && cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
	}
}

// PostReply 对指定评论发布回复，成功返回平台侧的回复 ID
func (c *Client) PostReply(ctx context.Context, accessToken, parentCommentID, text string) (string, error) {
	body := map[string]interface{}{
		"snippet": map[string]string{
			"parentId":     parentCommentID,
			"textOriginal": text,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal comment: %w", err)
	}

	url := c.baseURL + "/comments?part=snippet"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to post reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.mapError(resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode reply response: %w", err)
	}

	return result.ID, nil
}

// GetMyChannel 获取授权用户自己的频道
func (c *Client) GetMyChannel(ctx context.Context, accessToken string) (*Channel, error) {
	url := c.baseURL + "/channels?part=snippet&mine=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.mapError(resp)
	}

	var result struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode channel response: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, errors.New("youtube: no channel bound to this account")
	}

	return &Channel{
		ID:    result.Items[0].ID,
		Title: result.Items[0].Snippet.Title,
	}, nil
}

// mapError 把 API 错误归类为授权失效 / 评论不存在 / 可重试
func (c *Client) mapError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	reason := ""
	if err := json.Unmarshal(raw, &apiErr); err == nil && len(apiErr.Error.Errors) > 0 {
		reason = apiErr.Error.Errors[0].Reason
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrTokenInvalid
	case http.StatusForbidden:
		// 配额 / 限流是平台侧临时问题，稍后重试即可
		if reason == "quotaExceeded" || reason == "rateLimitExceeded" {
			return fmt.Errorf("youtube: api quota exhausted (reason=%s)", reason)
		}
		return ErrTokenInvalid
	case http.StatusNotFound:
		return ErrCommentGone
	default:
		return fmt.Errorf("youtube: api error %d (reason=%s): %s", resp.StatusCode, reason, apiErr.Error.Message)
	}
}
