package oauth

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ScopeYouTube 发布评论回复所需的最小权限
const ScopeYouTube = "https://www.googleapis.com/auth/youtube.force-ssl"

type GoogleOAuth struct {
	config *oauth2.Config
}

func NewGoogleOAuth(clientID, clientSecret, redirectURI string) *GoogleOAuth {
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{ScopeYouTube},
			Endpoint:     google.Endpoint,
		},
	}
}

// GetAuthURL 获取 Google 授权 URL
// 必须 offline + consent 才能拿到 refresh token
func (g *GoogleOAuth) GetAuthURL(state string) string {
	return g.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange 用授权码换取 token
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.config.Exchange(ctx, code)
}

// TokenSource 基于已存 token 构造自动刷新的 TokenSource
func (g *GoogleOAuth) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return g.config.TokenSource(ctx, token)
}
