package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

// PinterestAdapter はPinterest v5 APIのアナリティクス取得を行う。
// 広告アカウントアナリティクス（TOTAL_*列、TOTAL_AUDIENCEを含む）を優先し、
// 取得できない場合はオーガニックのuser_account/analyticsへフォールバックする。
// オーガニックAPIはaudienceを提供しないためフォールバック時のaudienceは0。
// プロフィールのfollower_countは総フォロワー数のみに使い、audienceへは流さない。
type PinterestAdapter struct {
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewPinterestAdapter はPinterestAdapterを生成する。
func NewPinterestAdapter(client *http.Client, logger *slog.Logger) *PinterestAdapter {
	return &PinterestAdapter{
		client:  client,
		logger:  logger,
		baseURL: "https://api.pinterest.com/v5",
	}
}

// Platform はAdapterインターフェースを実装する。
func (a *PinterestAdapter) Platform() model.Platform {
	return model.PlatformPinterest
}

// LagDays はAdapterインターフェースを実装する。Pinterestに確定遅延はない。
func (a *PinterestAdapter) LagDays() int {
	return 0
}

// FetchWindow は指定期間のPinterestメトリクスを取得して正規化する。
func (a *PinterestAdapter) FetchWindow(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error) {
	header := bearerHeader(accessToken)
	win := &model.MetricWindow{}

	// プロフィール（総フォロワー数）
	var account struct {
		FollowerCount flexInt `json:"follower_count"`
	}
	found, err := getJSON(ctx, a.client, "pinterest", a.baseURL+"/user_account", header, &account)
	if err != nil {
		return nil, err
	}
	if found {
		win.FollowersTotal = int64(account.FollowerCount)
	}

	startDate := formatDate(start)
	endDate := formatDate(end)

	// 広告アカウントアナリティクス（audienceを含む）を優先
	adFilled, err := a.fetchAdAnalytics(ctx, header, startDate, endDate, win)
	if err != nil {
		return nil, err
	}
	if adFilled {
		return win, nil
	}

	// オーガニックへフォールバック
	a.logger.Info("Pinterestオーガニックアナリティクスへフォールバックします",
		slog.String("account_id", integ.AccountID),
	)
	if err := a.fetchOrganicAnalytics(ctx, header, startDate, endDate, win); err != nil {
		return nil, err
	}
	return win, nil
}

// fetchAdAnalytics は最初の広告アカウントのTOTAL_*列を取得する。
// インプレッションが正の場合のみwinへ反映してtrueを返す。
func (a *PinterestAdapter) fetchAdAnalytics(ctx context.Context, header http.Header, startDate, endDate string, win *model.MetricWindow) (bool, error) {
	var adAccounts struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	found, err := getJSON(ctx, a.client, "pinterest", a.baseURL+"/ad_accounts", header, &adAccounts)
	if err != nil {
		return false, err
	}
	if !found || len(adAccounts.Items) == 0 {
		return false, nil
	}

	adAccountID := adAccounts.Items[0].ID
	analyticsURL := fmt.Sprintf("%s/ad_accounts/%s/analytics?%s", a.baseURL, url.PathEscape(adAccountID), url.Values{
		"start_date":  {startDate},
		"end_date":    {endDate},
		"columns":     {"TOTAL_IMPRESSION,TOTAL_ENGAGEMENT,TOTAL_SAVE,TOTAL_PIN_CLICK,TOTAL_OUTBOUND_CLICK,TOTAL_AUDIENCE"},
		"granularity": {"TOTAL"},
	}.Encode())

	// レスポンスは単一オブジェクトまたは1要素のリストのどちらもありうる
	var raw json.RawMessage
	found, err = getJSON(ctx, a.client, "pinterest", analyticsURL, header, &raw)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	row := map[string]any{}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err == nil {
		if len(rows) == 0 {
			return false, nil
		}
		row = rows[0]
	} else if err := json.Unmarshal(raw, &row); err != nil {
		return false, fmt.Errorf("pinterest広告アナリティクスの解析に失敗しました: %w", err)
	}

	impressions := statValue(row, "TOTAL_IMPRESSION")
	if impressions <= 0 {
		return false, nil
	}

	win.ViewsOrganic = impressions
	win.Interactions = statValue(row, "TOTAL_ENGAGEMENT")
	win.Audience = statValue(row, "TOTAL_AUDIENCE")
	win.Saves = statValue(row, "TOTAL_SAVE")
	win.OutboundClicks = statValue(row, "TOTAL_PIN_CLICK") + statValue(row, "TOTAL_OUTBOUND_CLICK")
	return true, nil
}

// fetchOrganicAnalytics はuser_account/analyticsのsummary_metricsを取得する。
func (a *PinterestAdapter) fetchOrganicAnalytics(ctx context.Context, header http.Header, startDate, endDate string, win *model.MetricWindow) error {
	var analytics struct {
		All struct {
			SummaryMetrics map[string]flexInt `json:"summary_metrics"`
		} `json:"all"`
	}
	analyticsURL := fmt.Sprintf("%s/user_account/analytics?%s", a.baseURL, url.Values{
		"start_date":    {startDate},
		"end_date":      {endDate},
		"columns":       {"IMPRESSION,PIN_CLICK,SAVE,ENGAGEMENT,OUTBOUND_CLICK"},
		"from_at_times": {"ALL"},
	}.Encode())
	found, err := getJSON(ctx, a.client, "pinterest", analyticsURL, header, &analytics)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	summary := analytics.All.SummaryMetrics
	win.ViewsOrganic = int64(summary["IMPRESSION"])
	win.Interactions = int64(summary["ENGAGEMENT"])
	win.Saves = int64(summary["SAVE"])
	win.OutboundClicks = int64(summary["PIN_CLICK"]) + int64(summary["OUTBOUND_CLICK"])
	win.Audience = 0
	return nil
}

// statValue は数値・数値文字列・nullが混在するAPI値をint64へ変換する。
func statValue(row map[string]any, key string) int64 {
	switch v := row[key].(type) {
	case float64:
		return int64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return int64(parsed)
	default:
		return 0
	}
}
