package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

// youtubeLagDays はYouTubeアナリティクスの確定遅延日数。
// 直近2〜3日のデータは未確定のため、ウィンドウ全体を過去へずらす。
const youtubeLagDays = 3

// MetadataKeyContentOwnerID はコンテンツ所有者（CMS）IDを保持する連携メタデータキー。
const MetadataKeyContentOwnerID = "content_owner_id"

// YouTubeAdapter はYouTube Data API / Analytics APIのメトリクス取得を行う。
// Analytics APIは日次元なしで呼び出し、期間合計の単一行を受け取る。
// 登録者総数はData APIのsubscriberCountから取得する。
type YouTubeAdapter struct {
	client       *http.Client
	logger       *slog.Logger
	dataURL      string
	analyticsURL string
}

// NewYouTubeAdapter はYouTubeAdapterを生成する。
func NewYouTubeAdapter(client *http.Client, logger *slog.Logger) *YouTubeAdapter {
	return &YouTubeAdapter{
		client:       client,
		logger:       logger,
		dataURL:      "https://www.googleapis.com/youtube/v3",
		analyticsURL: "https://youtubeanalytics.googleapis.com/v2/reports",
	}
}

// Platform はAdapterインターフェースを実装する。
func (a *YouTubeAdapter) Platform() model.Platform {
	return model.PlatformYouTube
}

// LagDays はAdapterインターフェースを実装する。
func (a *YouTubeAdapter) LagDays() int {
	return youtubeLagDays
}

// FetchWindow は指定期間のYouTubeメトリクスを取得して正規化する。
func (a *YouTubeAdapter) FetchWindow(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error) {
	channelID := integ.AccountID
	contentOwnerID := integ.Metadata[MetadataKeyContentOwnerID]
	header := bearerHeader(accessToken)
	win := &model.MetricWindow{}

	// Data API: 登録者総数
	channelParams := url.Values{
		"part": {"statistics"},
		"id":   {channelID},
	}
	if contentOwnerID != "" {
		channelParams.Set("onBehalfOfContentOwner", contentOwnerID)
	}
	var channels struct {
		Items []struct {
			Statistics struct {
				SubscriberCount flexInt `json:"subscriberCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	found, err := getJSON(ctx, a.client, "youtube", a.dataURL+"/channels?"+channelParams.Encode(), header, &channels)
	if err != nil {
		return nil, err
	}
	if found && len(channels.Items) > 0 {
		win.FollowersTotal = int64(channels.Items[0].Statistics.SubscriberCount)
	}

	// Analytics API: 日次元なしの期間合計（単一行）
	analyticsParams := url.Values{
		"ids":       {"channel==" + channelID},
		"startDate": {formatDate(start)},
		"endDate":   {formatDate(end)},
		"metrics":   {"views,subscribersGained,likes,comments,shares,estimatedMinutesWatched"},
	}
	if contentOwnerID != "" {
		analyticsParams.Set("ids", "contentOwner=="+contentOwnerID)
		analyticsParams.Set("filters", "channel=="+channelID)
	}
	var report struct {
		Rows [][]flexInt `json:"rows"`
	}
	found, err = getJSON(ctx, a.client, "youtube", a.analyticsURL+"?"+analyticsParams.Encode(), header, &report)
	if err != nil {
		return nil, err
	}
	if !found || len(report.Rows) == 0 {
		a.logger.Warn("YouTubeアナリティクスにデータがありません",
			slog.String("account_id", channelID),
			slog.String("start", formatDate(start)),
			slog.String("end", formatDate(end)),
		)
		return win, nil
	}

	row := report.Rows[0]
	if len(row) < 6 {
		return nil, fmt.Errorf("YouTubeアナリティクスの行形式が不正です: %d列", len(row))
	}

	// 列順: views, subscribersGained, likes, comments, shares, estimatedMinutesWatched
	win.ViewsOrganic = int64(row[0])
	win.AccountsReached = int64(row[0])
	win.FollowersNew = int64(row[1])
	win.Interactions = int64(row[2]) + int64(row[3]) + int64(row[4])
	win.WatchTimeHours = float64(row[5]) / 60.0
	return win, nil
}
