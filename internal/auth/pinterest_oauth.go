package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/socialsync/internal/model"
)

// PinterestRefresher はPinterest v5 OAuthのリフレッシュトークン交換を行う。
// アプリ資格情報をBasic認証で送り、application/x-www-form-urlencodedでPOSTする。
type PinterestRefresher struct {
	client       *http.Client
	logger       *slog.Logger
	clientID     string
	clientSecret string
	tokenURL     string
}

// NewPinterestRefresher はPinterestRefresherを生成する。
func NewPinterestRefresher(client *http.Client, logger *slog.Logger, clientID, clientSecret string) *PinterestRefresher {
	return &PinterestRefresher{
		client:       client,
		logger:       logger,
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     "https://api.pinterest.com/v5/oauth/token",
	}
}

// Platform はTokenRefresherインターフェースを実装する。
func (r *PinterestRefresher) Platform() model.Platform {
	return model.PlatformPinterest
}

// Refresh はリフレッシュトークンを新しいアクセストークンへ交換する。
// Pinterestは新しいリフレッシュトークンを返さないことがあり、その場合
// Token.RefreshTokenは空のままとなる。
func (r *PinterestRefresher) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("リフレッシュリクエストの作成に失敗: %w", err)
	}
	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	r.logger.Info("Pinterestアクセストークンをリフレッシュします")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("リフレッシュリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("リフレッシュレスポンスの読み取りに失敗: %w", err)
	}

	var tokenData struct {
		AccessToken      string `json:"access_token"`
		RefreshToken     string `json:"refresh_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &tokenData); err != nil {
		return nil, fmt.Errorf("リフレッシュレスポンスの解析に失敗: %w", err)
	}

	if resp.StatusCode != http.StatusOK || tokenData.Error != "" || tokenData.AccessToken == "" {
		reason := tokenData.ErrorDescription
		if reason == "" {
			reason = tokenData.Error
		}
		if reason == "" {
			reason = fmt.Sprintf("status=%d", resp.StatusCode)
		}
		return nil, fmt.Errorf("Pinterestトークンのリフレッシュに失敗しました: %s", reason)
	}

	return &Token{
		AccessToken:  tokenData.AccessToken,
		RefreshToken: tokenData.RefreshToken,
	}, nil
}
