package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/internal/model"
	"github.com/qs3c/reply_go_server/internal/model/dto"
	"github.com/qs3c/reply_go_server/internal/pkg/oauth"
	"github.com/qs3c/reply_go_server/internal/pkg/seal"
	"github.com/qs3c/reply_go_server/internal/pkg/youtube"
	"github.com/qs3c/reply_go_server/internal/repository"
)

var ErrChannelNotConnected = errors.New("频道未连接或授权已失效")

// OAuthClient 授权码流程出口，生产实现是 oauth.GoogleOAuth
type OAuthClient interface {
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource
}

// ChannelLookup 频道信息查询出口，生产实现是 youtube.Client
type ChannelLookup interface {
	GetMyChannel(ctx context.Context, accessToken string) (*youtube.Channel, error)
}

// CredentialService 频道授权管理：连接、解密、续期、吊销
type CredentialService struct {
	credRepo   *repository.CredentialRepository
	sealer     *seal.Sealer
	google     OAuthClient
	stateStore *oauth.StateStore
	yt         ChannelLookup
}

func NewCredentialService(
	credRepo *repository.CredentialRepository,
	sealer *seal.Sealer,
	google OAuthClient,
	stateStore *oauth.StateStore,
	yt ChannelLookup,
) *CredentialService {
	return &CredentialService{
		credRepo:   credRepo,
		sealer:     sealer,
		google:     google,
		stateStore: stateStore,
		yt:         yt,
	}
}

// BeginConnect 生成带随机 state 的 Google 授权地址
func (s *CredentialService) BeginConnect(ctx context.Context, userID int64, redirectURI string) (string, error) {
	state, err := s.stateStore.GenerateState(ctx, &oauth.StateData{
		UserID:      userID,
		RedirectURI: redirectURI,
	})
	if err != nil {
		return "", err
	}
	return s.google.GetAuthURL(state), nil
}

// CompleteConnect 授权回调：校验 state、换 token、拉频道信息、加密落库
func (s *CredentialService) CompleteConnect(ctx context.Context, state, code string) (*oauth.StateData, error) {
	data, err := s.stateStore.ValidateState(ctx, state)
	if err != nil {
		return nil, err
	}

	token, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	if token.RefreshToken == "" {
		// 没有 refresh token 的授权撑不过第一个小时，直接要求重来
		return nil, errors.New("authorization did not include a refresh token")
	}

	channel, err := s.yt.GetMyChannel(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel: %w", err)
	}

	sealedAccess, err := s.sealer.Seal(token.AccessToken)
	if err != nil {
		return nil, err
	}
	sealedRefresh, err := s.sealer.Seal(token.RefreshToken)
	if err != nil {
		return nil, err
	}

	cred := &model.ChannelCredential{
		UserID:       data.UserID,
		ChannelID:    channel.ID,
		ChannelTitle: channel.Title,
		AccessToken:  sealedAccess,
		RefreshToken: sealedRefresh,
		TokenExpiry:  token.Expiry.UTC(),
		Status:       model.CredentialStatusConnected,
	}
	if err := s.credRepo.Upsert(cred); err != nil {
		return nil, err
	}

	log.Printf("User %d connected channel %s (%s)", data.UserID, channel.ID, channel.Title)
	return data, nil
}

// Status 频道连接状态
func (s *CredentialService) Status(userID int64) (*dto.ChannelStatus, error) {
	cred, err := s.credRepo.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &dto.ChannelStatus{Connected: false}, nil
	}
	if err != nil {
		return nil, err
	}

	return &dto.ChannelStatus{
		Connected:    cred.Status == model.CredentialStatusConnected,
		ChannelID:    cred.ChannelID,
		ChannelTitle: cred.ChannelTitle,
		ConnectedAt:  cred.CreatedAt.Format(time.RFC3339),
	}, nil
}

// Disconnect 断开频道，删除授权记录
func (s *CredentialService) Disconnect(userID int64) error {
	return s.credRepo.Delete(userID)
}

// Revoke 标记授权失效（发布时收到 401/403 后调用）
func (s *CredentialService) Revoke(userID int64) error {
	return s.credRepo.MarkRevoked(userID)
}

// Resolve 取可用的明文 access token，过期时自动续期并回写
// 授权已失效返回 ErrChannelNotConnected，临时故障返回其他错误
func (s *CredentialService) Resolve(ctx context.Context, userID int64) (string, error) {
	cred, err := s.credRepo.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrChannelNotConnected
	}
	if err != nil {
		return "", err
	}
	if cred.Status != model.CredentialStatusConnected {
		return "", ErrChannelNotConnected
	}

	accessToken, err := s.sealer.Open(cred.AccessToken)
	if err != nil {
		return "", err
	}
	refreshToken, err := s.sealer.Open(cred.RefreshToken)
	if err != nil {
		return "", err
	}

	if refreshToken == "" && time.Now().After(cred.TokenExpiry) {
		if revokeErr := s.credRepo.MarkRevoked(userID); revokeErr != nil {
			log.Printf("Failed to mark credential revoked for user %d: %v", userID, revokeErr)
		}
		return "", ErrChannelNotConnected
	}

	source := s.google.TokenSource(ctx, &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       cred.TokenExpiry,
	})

	fresh, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response.StatusCode < 500 {
			// 授权服务器明确拒绝（invalid_grant 等），重试没有意义
			if revokeErr := s.credRepo.MarkRevoked(userID); revokeErr != nil {
				log.Printf("Failed to mark credential revoked for user %d: %v", userID, revokeErr)
			}
			return "", ErrChannelNotConnected
		}
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	if fresh.AccessToken != accessToken {
		// Google 续期时通常不换 refresh token，空值沿用旧的
		newRefresh := fresh.RefreshToken
		if newRefresh == "" {
			newRefresh = refreshToken
		}

		sealedAccess, err := s.sealer.Seal(fresh.AccessToken)
		if err != nil {
			return "", err
		}
		sealedRefresh, err := s.sealer.Seal(newRefresh)
		if err != nil {
			return "", err
		}
		if err := s.credRepo.UpdateTokens(userID, sealedAccess, sealedRefresh, fresh.Expiry.UTC()); err != nil {
			log.Printf("Failed to persist refreshed token for user %d: %v", userID, err)
		}
	}

	return fresh.AccessToken, nil
}
