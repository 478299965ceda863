package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

// Adapter はプラットフォーム固有のアナリティクス取得を抽象化する。
// FetchWindowは[start, end)の期間を1つのMetricWindowへ正規化して返す。
// データ不在（404/空レスポンス）はエラーではなくゼロ値ウィンドウを返す。
type Adapter interface {
	// Platform はこのアダプターが扱うプラットフォームを返す。
	Platform() model.Platform
	// LagDays はプラットフォームのデータ確定遅延日数を返す。
	// ウィンドウ計画時に基準日をこの日数だけ過去へずらす。
	LagDays() int
	// FetchWindow は指定期間のメトリクスを取得して正規化する。
	FetchWindow(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error)
}

// AccountResolver はアカウント識別子の解決を行う任意インターフェース。
// ユーザー名などの別名で登録されたアカウントを正規IDへ解決できる
// アダプターのみが実装する。
type AccountResolver interface {
	// ResolveAccountID は別名を正規アカウントIDへ解決する。
	// 解決不要な場合は入力をそのまま返す。
	ResolveAccountID(ctx context.Context, accountID, accessToken string) (string, error)
}

// Registry はプラットフォーム別アダプターの参照表。
type Registry struct {
	adapters map[model.Platform]Adapter
}

// NewRegistry はアダプター一覧から参照表を生成する。
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[model.Platform]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Platform()] = a
	}
	return &Registry{adapters: m}
}

// Get は指定プラットフォームのアダプターを返す。
func (r *Registry) Get(p model.Platform) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("未対応のプラットフォームです: %s", p)
	}
	return a, nil
}

// formatDate はAPIリクエスト用のYYYY-MM-DD表記を返す。
func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
