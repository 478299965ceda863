// Package auth はプラットフォームごとのアクセストークンのリフレッシュを提供する。
// 初回のOAuth認可コード交換は扱わない（連携は登録済みトークンを前提とする）。
package auth

import (
	"context"

	"github.com/hitoshi/socialsync/internal/model"
)

// Token はリフレッシュで得られた新しい認証情報。
// RefreshTokenが空の場合、呼び出し側は既存のリフレッシュトークンを維持する。
type Token struct {
	AccessToken  string
	RefreshToken string
}

// TokenRefresher はリフレッシュトークンから新しいアクセストークンを取得する。
// リフレッシュ手段を持たないプラットフォームには登録されない。
type TokenRefresher interface {
	// Platform はこのリフレッシャーが扱うプラットフォームを返す。
	Platform() model.Platform
	// Refresh はリフレッシュトークンを新しいトークンへ交換する。
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// RefresherRegistry はプラットフォーム別リフレッシャーの参照表。
type RefresherRegistry struct {
	refreshers map[model.Platform]TokenRefresher
}

// NewRefresherRegistry はリフレッシャー一覧から参照表を生成する。nil要素は無視する。
func NewRefresherRegistry(refreshers ...TokenRefresher) *RefresherRegistry {
	m := make(map[model.Platform]TokenRefresher, len(refreshers))
	for _, r := range refreshers {
		if r != nil {
			m[r.Platform()] = r
		}
	}
	return &RefresherRegistry{refreshers: m}
}

// Get は指定プラットフォームのリフレッシャーを返す。未登録の場合はnil, falseを返す。
func (r *RefresherRegistry) Get(p model.Platform) (TokenRefresher, bool) {
	refresher, ok := r.refreshers[p]
	return refresher, ok
}
