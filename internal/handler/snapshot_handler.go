package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/socialsync/internal/model"
)

// defaultRangeDays はスナップショット範囲クエリのデフォルト日数。
// 保持期間と同じ90日を既定とする。
const defaultRangeDays = 90

// SnapshotFinder はスナップショット検索のインターフェース。
// repository.SnapshotRepositoryの部分集合として定義する。
type SnapshotFinder interface {
	ListRange(ctx context.Context, platform model.Platform, accountID, startDate, endDate string) ([]*model.Snapshot, error)
}

// SnapshotHandler は保存済みメトリクスの取得ハンドラー。
type SnapshotHandler struct {
	snapshots SnapshotFinder
}

// NewSnapshotHandler はSnapshotHandlerを生成する。
func NewSnapshotHandler(snapshots SnapshotFinder) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots}
}

// snapshotResponse はスナップショットのAPIレスポンス。
type snapshotResponse struct {
	Platform        string                        `json:"platform"`
	AccountID       string                        `json:"account_id"`
	Date            string                        `json:"date"`
	FollowersTotal  int64                         `json:"followers_total"`
	FollowersNew    int64                         `json:"followers_new"`
	ViewsOrganic    int64                         `json:"views_organic"`
	ViewsAds        int64                         `json:"views_ads"`
	Interactions    int64                         `json:"interactions"`
	ProfileVisits   int64                         `json:"profile_visits"`
	AccountsReached int64                         `json:"accounts_reached"`
	Saves           int64                         `json:"saves"`
	WatchTimeHours  float64                       `json:"watch_time_hours"`
	RawMetrics      map[string]model.MetricWindow `json:"raw_metrics"`
}

// toSnapshotResponse はスナップショットをAPIレスポンス形式へ変換する。
func toSnapshotResponse(s *model.Snapshot) snapshotResponse {
	return snapshotResponse{
		Platform:        string(s.Platform),
		AccountID:       s.AccountID,
		Date:            s.Date,
		FollowersTotal:  s.FollowersTotal,
		FollowersNew:    s.FollowersNew,
		ViewsOrganic:    s.ViewsOrganic,
		ViewsAds:        s.ViewsAds,
		Interactions:    s.Interactions,
		ProfileVisits:   s.ProfileVisits,
		AccountsReached: s.AccountsReached,
		Saves:           s.Saves,
		WatchTimeHours:  s.WatchTimeHours,
		RawMetrics:      s.RawMetrics,
	}
}

// ListMetrics は指定アカウントのスナップショットを日付範囲で返す。
// start_date/end_date（YYYY-MM-DD）を省略した場合は直近90日間。
// GET /api/metrics/{platform}/{account_id}
func (h *SnapshotHandler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	platformParam := chi.URLParam(r, "platform")
	accountID := chi.URLParam(r, "account_id")

	p, err := model.ParsePlatform(platformParam)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPlatformError(platformParam))
		return
	}

	now := time.Now().UTC()
	endDate := r.URL.Query().Get("end_date")
	if endDate == "" {
		endDate = now.Format("2006-01-02")
	}
	startDate := r.URL.Query().Get("start_date")
	if startDate == "" {
		startDate = now.AddDate(0, 0, -defaultRangeDays).Format("2006-01-02")
	}

	snapshots, err := h.snapshots.ListRange(r.Context(), p, accountID, startDate, endDate)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]snapshotResponse, 0, len(snapshots))
	for _, s := range snapshots {
		resp = append(resp, toSnapshotResponse(s))
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"platform":   string(p),
		"account_id": accountID,
		"start_date": startDate,
		"end_date":   endDate,
		"snapshots":  resp,
	})
}
