package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

// instagramTimestampFormat はGraph APIのメディアタイムスタンプ形式。
const instagramTimestampFormat = "2006-01-02T15:04:05-0700"

// InstagramAdapter はInstagram Graph API (v19.0) のアナリティクス取得を行う。
// impressions/reachは日次値の合計、profile_viewsは日次合計、
// interactionsは期間内メディアのlike_count+comments_countの合計。
type InstagramAdapter struct {
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewInstagramAdapter はInstagramAdapterを生成する。
func NewInstagramAdapter(client *http.Client, logger *slog.Logger) *InstagramAdapter {
	return &InstagramAdapter{
		client:  client,
		logger:  logger,
		baseURL: "https://graph.facebook.com/v19.0",
	}
}

// Platform はAdapterインターフェースを実装する。
func (a *InstagramAdapter) Platform() model.Platform {
	return model.PlatformInstagram
}

// LagDays はAdapterインターフェースを実装する。Instagramに確定遅延はない。
func (a *InstagramAdapter) LagDays() int {
	return 0
}

// graphInsightsResponse はGraph API insightsレスポンス。
type graphInsightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value flexInt `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

// FetchWindow は指定期間のInstagramメトリクスを取得して正規化する。
func (a *InstagramAdapter) FetchWindow(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error) {
	accountID := integ.AccountID
	win := &model.MetricWindow{}

	// プロフィール（総フォロワー数）
	var profile struct {
		FollowersCount flexInt `json:"followers_count"`
	}
	profileURL := fmt.Sprintf("%s/%s?%s", a.baseURL, url.PathEscape(accountID), url.Values{
		"access_token": {accessToken},
		"fields":       {"followers_count"},
	}.Encode())
	found, err := getJSON(ctx, a.client, "instagram", profileURL, nil, &profile)
	if err != nil {
		return nil, err
	}
	if !found {
		a.logger.Warn("Instagramアカウントが見つかりません",
			slog.String("account_id", accountID),
		)
		return win, nil
	}
	win.FollowersTotal = int64(profile.FollowersCount)

	since := strconv.FormatInt(start.Unix(), 10)
	until := strconv.FormatInt(end.Unix(), 10)

	// impressions/reach（日次合計）
	var insights graphInsightsResponse
	insightsURL := fmt.Sprintf("%s/%s/insights?%s", a.baseURL, url.PathEscape(accountID), url.Values{
		"access_token": {accessToken},
		"metric":       {"impressions,reach"},
		"period":       {"day"},
		"since":        {since},
		"until":        {until},
	}.Encode())
	found, err = getJSON(ctx, a.client, "instagram", insightsURL, nil, &insights)
	if err != nil {
		return nil, err
	}
	if found {
		for _, item := range insights.Data {
			var sum int64
			for _, v := range item.Values {
				sum += int64(v.Value)
			}
			switch item.Name {
			case "impressions":
				win.ViewsOrganic = sum
			case "reach":
				win.AccountsReached = sum
			}
		}
	}

	// profile_views（dayのみ対応のため常に日次合計）
	var profileViews graphInsightsResponse
	pvURL := fmt.Sprintf("%s/%s/insights?%s", a.baseURL, url.PathEscape(accountID), url.Values{
		"access_token": {accessToken},
		"metric":       {"profile_views"},
		"period":       {"day"},
		"since":        {since},
		"until":        {until},
	}.Encode())
	found, err = getJSON(ctx, a.client, "instagram", pvURL, nil, &profileViews)
	if err != nil {
		return nil, err
	}
	if found {
		for _, item := range profileViews.Data {
			if item.Name != "profile_views" {
				continue
			}
			for _, v := range item.Values {
				win.ProfileVisits += int64(v.Value)
			}
		}
	}

	// メディアのいいね＋コメント（期間内のみ）
	interactions, err := a.fetchMediaInteractions(ctx, accountID, accessToken, start, end)
	if err != nil {
		return nil, err
	}
	win.Interactions = interactions

	return win, nil
}

// fetchMediaInteractions は期間内に投稿されたメディアのlike_count+comments_countを合計する。
func (a *InstagramAdapter) fetchMediaInteractions(ctx context.Context, accountID, accessToken string, start, end time.Time) (int64, error) {
	var media struct {
		Data []struct {
			LikeCount     flexInt `json:"like_count"`
			CommentsCount flexInt `json:"comments_count"`
			Timestamp     string  `json:"timestamp"`
		} `json:"data"`
	}
	mediaURL := fmt.Sprintf("%s/%s/media?%s", a.baseURL, url.PathEscape(accountID), url.Values{
		"access_token": {accessToken},
		"fields":       {"like_count,comments_count,timestamp"},
		"limit":        {"100"},
	}.Encode())
	found, err := getJSON(ctx, a.client, "instagram", mediaURL, nil, &media)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	var total int64
	for _, m := range media.Data {
		if m.Timestamp == "" {
			continue
		}
		ts, err := time.Parse(instagramTimestampFormat, m.Timestamp)
		if err != nil {
			continue
		}
		if ts.Before(start) || ts.After(end) {
			continue
		}
		total += int64(m.LikeCount) + int64(m.CommentsCount)
	}
	return total, nil
}

// ResolveAccountID はユーザー名で登録されたアカウントを数値IGユーザーIDへ解決する。
// 数値IDはそのまま返す。AccountResolverインターフェースを実装する。
func (a *InstagramAdapter) ResolveAccountID(ctx context.Context, accountID, accessToken string) (string, error) {
	if isNumericID(accountID) {
		return accountID, nil
	}

	var pages struct {
		Data []struct {
			InstagramBusinessAccount *struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"instagram_business_account"`
		} `json:"data"`
	}
	accountsURL := fmt.Sprintf("%s/me/accounts?%s", a.baseURL, url.Values{
		"access_token": {accessToken},
		"fields":       {"id,name,instagram_business_account{id,username}"},
	}.Encode())
	found, err := getJSON(ctx, a.client, "instagram", accountsURL, nil, &pages)
	if err != nil {
		return "", err
	}
	if found {
		for _, page := range pages.Data {
			ig := page.InstagramBusinessAccount
			if ig != nil && strings.EqualFold(ig.Username, accountID) {
				return ig.ID, nil
			}
		}
	}
	return "", fmt.Errorf("Instagramユーザー名を解決できませんでした: %s", accountID)
}

// isNumericID は文字列が数値のみで構成されているかを判定する。
func isNumericID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
