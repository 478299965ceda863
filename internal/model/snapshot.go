package model

import "time"

// raw_metrics内の各比較ウィンドウのキー。
const (
	// RawKeyPeriod7d は直近7日間ウィンドウ。
	RawKeyPeriod7d = "period_7d"
	// RawKeyPeriod7dPrior はその前の7日間（7〜14日前）ウィンドウ。
	RawKeyPeriod7dPrior = "period_7_14d_prior"
	// RawKeyPeriod30d は直近30日間ウィンドウ。
	RawKeyPeriod30d = "period_30d"
	// RawKeyPeriod30dPrior はその前の30日間（30〜60日前）ウィンドウ。
	RawKeyPeriod30dPrior = "period_30_60d_prior"
)

// MetricWindow は1つの期間ウィンドウに対する正規化済みメトリクス。
// 各アダプタがプラットフォーム固有のペイロードをこの形へ変換する。
// プラットフォームが報告できないフィールドは0のまま残る。
type MetricWindow struct {
	FollowersTotal  int64   `json:"followers_total"`
	FollowersNew    int64   `json:"followers_new"`
	ViewsOrganic    int64   `json:"views_organic"`
	ViewsAds        int64   `json:"views_ads"`
	Interactions    int64   `json:"interactions"`
	ProfileVisits   int64   `json:"profile_visits"`
	AccountsReached int64   `json:"accounts_reached"`
	Saves           int64   `json:"saves"`
	Audience        int64   `json:"audience"`
	OutboundClicks  int64   `json:"outbound_clicks"`
	WatchTimeHours  float64 `json:"watch_time_hours"`
}

// Snapshot は1つの連携アカウントの1回の同期結果を表す。
// (Platform, AccountID, Date) をキーとして保存され、同一キーへの
// 再同期は上書きとなる（冪等）。
//
// トップレベルのフラットなメトリクスフィールドは常にperiod_30dの値を
// 複製したもので、旧フォーマット互換のヘッドライン数値として保持する。
// 期間比較に使う4ウィンドウの生データはRawMetricsに保持する。
type Snapshot struct {
	Platform  Platform
	AccountID string
	// Date は取得日（日付粒度の保存キー）。YYYY-MM-DD。
	Date string

	// --- フラットフィールド（period_30dのミラー） ---
	FollowersTotal  int64
	FollowersNew    int64
	ViewsOrganic    int64
	ViewsAds        int64
	Interactions    int64
	ProfileVisits   int64
	AccountsReached int64
	Saves           int64
	WatchTimeHours  float64

	// RawMetrics は4つの比較ウィンドウ（RawKey*）の正規化済みメトリクス。
	RawMetrics map[string]MetricWindow

	CreatedAt time.Time
}

// NewSnapshot は4ウィンドウの結果からSnapshotを組み立てる。
// フラットフィールドにはperiod_30dウィンドウの値を複製する。
func NewSnapshot(platform Platform, accountID, date string, windows map[string]MetricWindow) *Snapshot {
	m30 := windows[RawKeyPeriod30d]
	return &Snapshot{
		Platform:        platform,
		AccountID:       accountID,
		Date:            date,
		FollowersTotal:  m30.FollowersTotal,
		FollowersNew:    m30.FollowersNew,
		ViewsOrganic:    m30.ViewsOrganic,
		ViewsAds:        m30.ViewsAds,
		Interactions:    m30.Interactions,
		ProfileVisits:   m30.ProfileVisits,
		AccountsReached: m30.AccountsReached,
		Saves:           m30.Saves,
		WatchTimeHours:  m30.WatchTimeHours,
		RawMetrics:      windows,
	}
}
