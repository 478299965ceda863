package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/hitoshi/socialsync/internal/model"
)

// GoogleRefresher はYouTube連携用のGoogle OAuthトークンリフレッシュを行う。
type GoogleRefresher struct {
	client *http.Client
	logger *slog.Logger
	config *oauth2.Config
}

// NewGoogleRefresher はGoogleRefresherを生成する。
func NewGoogleRefresher(client *http.Client, logger *slog.Logger, clientID, clientSecret string) *GoogleRefresher {
	return &GoogleRefresher{
		client: client,
		logger: logger,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
	}
}

// Platform はTokenRefresherインターフェースを実装する。
func (r *GoogleRefresher) Platform() model.Platform {
	return model.PlatformYouTube
}

// Refresh はリフレッシュトークンを新しいアクセストークンへ交換する。
// Googleはリフレッシュトークンをローテーションしないため、
// Token.RefreshTokenは新しい値が返された場合のみ設定される。
func (r *GoogleRefresher) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)

	r.logger.Info("Googleアクセストークンをリフレッシュします")

	src := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("Googleトークンのリフレッシュに失敗しました: %w", err)
	}

	result := &Token{AccessToken: token.AccessToken}
	if token.RefreshToken != refreshToken {
		result.RefreshToken = token.RefreshToken
	}
	return result, nil
}
