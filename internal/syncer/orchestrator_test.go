package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/socialsync/internal/auth"
	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/platform"
)

type orchestratorFixture struct {
	integRepo *mockIntegrationRepo
	snapRepo  *mockSnapshotRepo
	collector *recordingCollector
	orch      *Orchestrator
}

func newOrchestratorFixture(t *testing.T, refreshers *auth.RefresherRegistry, adapters ...platform.Adapter) *orchestratorFixture {
	t.Helper()
	integRepo := &mockIntegrationRepo{}
	snapRepo := &mockSnapshotRepo{}
	collector := &recordingCollector{}
	creds := NewCredentialManager(integRepo, refreshers, fakeCipher{}, collector, testLogger())
	orch := NewOrchestrator(integRepo, snapRepo, platform.NewRegistry(adapters...), creds, collector, testLogger(), 5)
	orch.now = func() time.Time { return time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC) }
	return &orchestratorFixture{
		integRepo: integRepo,
		snapRepo:  snapRepo,
		collector: collector,
		orch:      orch,
	}
}

func TestSyncOne_IntegrationNotFound(t *testing.T) {
	f := newOrchestratorFixture(t, auth.NewRefresherRegistry(), &mockAdapter{platform: model.PlatformInstagram})

	_, err := f.orch.SyncOne(context.Background(), model.PlatformInstagram, "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorを返すべき, got %v", err)
	}
	if apiErr.Code != model.ErrCodeIntegrationNotFound {
		t.Errorf("INTEGRATION_NOT_FOUNDを返すべき, got %q", apiErr.Code)
	}
}

func TestSyncIntegration_Disconnected(t *testing.T) {
	f := newOrchestratorFixture(t, auth.NewRefresherRegistry(), &mockAdapter{platform: model.PlatformInstagram})

	integ := activeIntegration(model.PlatformInstagram, "acct-1")
	integ.Status = model.IntegrationStatusDisconnected

	_, err := f.orch.SyncIntegration(context.Background(), integ)
	if !errors.Is(err, ErrIntegrationDisconnected) {
		t.Errorf("切断済み連携はErrIntegrationDisconnectedを返すべき, got %v", err)
	}
}

func TestSyncIntegration_BuildsSnapshotFromFourWindows(t *testing.T) {
	adapter := &mockAdapter{
		platform: model.PlatformFacebook,
		fetchFn: func(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error) {
			if accessToken != "access-token" {
				t.Errorf("復号済みアクセストークンを渡すべき, got %q", accessToken)
			}
			// ウィンドウ長（日数）をViewsOrganicに載せて区別できるようにする
			days := int64(end.Sub(start) / (24 * time.Hour))
			return &model.MetricWindow{FollowersTotal: 500, ViewsOrganic: days}, nil
		},
	}
	f := newOrchestratorFixture(t, auth.NewRefresherRegistry(), adapter)

	integ := activeIntegration(model.PlatformFacebook, "page-1")
	snapshot, err := f.orch.SyncIntegration(context.Background(), integ)
	if err != nil {
		t.Fatalf("同期は成功すべき: %v", err)
	}

	if snapshot.Date != "2024-06-30" {
		t.Errorf("取得日は2024-06-30であるべき, got %q", snapshot.Date)
	}
	if len(snapshot.RawMetrics) != 4 {
		t.Fatalf("4ウィンドウを保存すべき, got %d", len(snapshot.RawMetrics))
	}
	if got := snapshot.RawMetrics[model.RawKeyPeriod7d].ViewsOrganic; got != 7 {
		t.Errorf("period_7dは7日間ウィンドウの結果であるべき, got %d", got)
	}
	if got := snapshot.RawMetrics[model.RawKeyPeriod30dPrior].ViewsOrganic; got != 30 {
		t.Errorf("period_30_60d_priorは30日間ウィンドウの結果であるべき, got %d", got)
	}
	// フラットフィールドはperiod_30dのミラー
	if snapshot.ViewsOrganic != 30 || snapshot.FollowersTotal != 500 {
		t.Errorf("フラットフィールドはperiod_30dを複製すべき, got views=%d followers=%d", snapshot.ViewsOrganic, snapshot.FollowersTotal)
	}

	if len(f.snapRepo.upserted) != 1 {
		t.Fatalf("スナップショットを1件保存すべき, got %d", len(f.snapRepo.upserted))
	}
	if f.collector.syncSuccess != 1 || f.collector.snapshotsWritten != 1 {
		t.Errorf("成功メトリクスを記録すべき, got success=%d written=%d", f.collector.syncSuccess, f.collector.snapshotsWritten)
	}
}

func TestSyncIntegration_TransientErrorRetriedOnce(t *testing.T) {
	var attempts sync.Map
	adapter := &mockAdapter{
		platform: model.PlatformPinterest,
		fetchFn: func(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error) {
			n, _ := attempts.LoadOrStore(start, new(int32))
			if atomic.AddInt32(n.(*int32), 1) == 1 {
				return nil, platform.NewTransientError("pinterest", 503, "service unavailable")
			}
			return &model.MetricWindow{FollowersTotal: 10}, nil
		},
	}
	f := newOrchestratorFixture(t, auth.NewRefresherRegistry(), adapter)

	integ := activeIntegration(model.PlatformPinterest, "acct-1")
	snapshot, err := f.orch.SyncIntegration(context.Background(), integ)
	if err != nil {
		t.Fatalf("一時的エラーは1回リトライして成功すべき: %v", err)
	}
	if snapshot.FollowersTotal != 10 {
		t.Errorf("リトライ後の結果を採用すべき, got %d", snapshot.FollowersTotal)
	}
	if len(f.collector.httpStatuses) != 4 {
		t.Errorf("ウィンドウごとに503を記録すべき, got %d", len(f.collector.httpStatuses))
	}
}

func TestSyncIntegration_TransientErrorFailsAfterRetry(t *testing.T) {
	adapter := &mockAdapter{
		platform: model.PlatformPinterest,
		fetchFn: func(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error) {
			return nil, platform.NewTransientError("pinterest", 503, "service unavailable")
		},
	}
	f := newOrchestratorFixture(t, auth.NewRefresherRegistry(), adapter)

	integ := activeIntegration(model.PlatformPinterest, "acct-1")
	_, err := f.orch.SyncIntegration(context.Background(), integ)
	if err == nil {
		t.Fatal("リトライ後も失敗する場合はエラーを返すべき")
	}
	if len(f.snapRepo.upserted) != 0 {
		t.Errorf("失敗時はスナップショットを保存すべきでない, got %d", len(f.snapRepo.upserted))
	}
	if f.collector.syncFailure != 1 {
		t.Errorf("同期失敗を記録すべき, got %d", f.collector.syncFailure)
	}
}

func TestSyncIntegration_UnauthorizedRefreshesOnceAndRetries(t *testing.T) {
	var refreshCalls int32
	refreshers := auth.NewRefresherRegistry(&mockRefresher{
		platform: model.PlatformYouTube,
		refreshFn: func(ctx context.Context, refreshToken string) (*auth.Token, error) {
			atomic.AddInt32(&refreshCalls, 1)
			return &auth.Token{AccessToken: "fresh-token"}, nil
		},
	})

	adapter := &mockAdapter{
		platform: model.PlatformYouTube,
		fetchFn: func(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error) {
			if accessToken != "fresh-token" {
				return nil, platform.NewUnauthorizedError("youtube", 401, "token expired")
			}
			return &model.MetricWindow{FollowersTotal: 42}, nil
		},
	}
	f := newOrchestratorFixture(t, refreshers, adapter)

	integ := activeIntegration(model.PlatformYouTube, "channel-1")
	snapshot, err := f.orch.SyncIntegration(context.Background(), integ)
	if err != nil {
		t.Fatalf("リフレッシュ後の再取得は成功すべき: %v", err)
	}
	if snapshot.FollowersTotal != 42 {
		t.Errorf("新トークンでの結果を採用すべき, got %d", snapshot.FollowersTotal)
	}
	// 4ウィンドウが並行して401を受けてもリフレッシュは1回に制限される
	if got := atomic.LoadInt32(&refreshCalls); got != 1 {
		t.Errorf("リフレッシュは同期全体で1回であるべき, got %d", got)
	}
}

func TestSyncIntegration_UnauthorizedWithoutRefresher_Terminal(t *testing.T) {
	adapter := &mockAdapter{
		platform: model.PlatformInstagram,
		fetchFn: func(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error) {
			return nil, platform.NewUnauthorizedError("instagram", 401, "token expired")
		},
	}
	f := newOrchestratorFixture(t, auth.NewRefresherRegistry(), adapter)

	integ := activeIntegration(model.PlatformInstagram, "acct-1")
	_, err := f.orch.SyncIntegration(context.Background(), integ)
	if !IsTerminal(err) {
		t.Fatalf("リフレッシュ不能な認証エラーはTerminalErrorになるべき, got %v", err)
	}
	if integ.Status != model.IntegrationStatusDisconnected {
		t.Errorf("連携はDISCONNECTEDへ遷移すべき, got %q", integ.Status)
	}
}

func TestSyncIntegration_ResolvesAliasButStoresUnderRegisteredID(t *testing.T) {
	adapter := &resolvingAdapter{
		mockAdapter: mockAdapter{
			platform: model.PlatformInstagram,
			fetchFn: func(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error) {
				if integ.AccountID != "17841400000000001" {
					t.Errorf("取得には解決済みIDを使うべき, got %q", integ.AccountID)
				}
				return &model.MetricWindow{}, nil
			},
		},
		resolveFn: func(ctx context.Context, accountID, accessToken string) (string, error) {
			if accountID != "my_shop" {
				t.Errorf("登録時の別名を解決に渡すべき, got %q", accountID)
			}
			return "17841400000000001", nil
		},
	}
	f := newOrchestratorFixture(t, auth.NewRefresherRegistry(), adapter)

	integ := activeIntegration(model.PlatformInstagram, "my_shop")
	snapshot, err := f.orch.SyncIntegration(context.Background(), integ)
	if err != nil {
		t.Fatalf("同期は成功すべき: %v", err)
	}
	if snapshot.AccountID != "my_shop" {
		t.Errorf("スナップショットは登録時のアカウントIDで保存すべき, got %q", snapshot.AccountID)
	}
}

func TestRunFullSync_OneFailureDoesNotStopBatch(t *testing.T) {
	adapter := &mockAdapter{
		platform: model.PlatformFacebook,
		fetchFn: func(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error) {
			if integ.AccountID == "broken" {
				return nil, platform.NewTransientError("facebook", 500, "internal error")
			}
			return &model.MetricWindow{}, nil
		},
	}
	f := newOrchestratorFixture(t, auth.NewRefresherRegistry(), adapter)

	integrations := []*model.Integration{
		activeIntegration(model.PlatformFacebook, "page-1"),
		activeIntegration(model.PlatformFacebook, "page-2"),
		activeIntegration(model.PlatformFacebook, "broken"),
		activeIntegration(model.PlatformFacebook, "page-3"),
		activeIntegration(model.PlatformFacebook, "page-4"),
	}
	f.integRepo.listAllFn = func(ctx context.Context) ([]*model.Integration, error) {
		return integrations, nil
	}

	report := f.orch.RunFullSync(context.Background(), model.SyncStatusScopeGlobal)
	if report.Succeeded != 4 {
		t.Errorf("4件成功すべき, got %d", report.Succeeded)
	}
	if report.Failed != 1 {
		t.Errorf("1件失敗すべき, got %d", report.Failed)
	}
	if len(f.snapRepo.upserted) != 4 {
		t.Errorf("成功した4件のスナップショットを保存すべき, got %d", len(f.snapRepo.upserted))
	}
}

func TestRunFullSync_SkipsDisconnected(t *testing.T) {
	adapter := &mockAdapter{platform: model.PlatformPinterest}
	f := newOrchestratorFixture(t, auth.NewRefresherRegistry(), adapter)

	disconnected := activeIntegration(model.PlatformPinterest, "acct-2")
	disconnected.Status = model.IntegrationStatusDisconnected

	f.integRepo.listByUserIDFn = func(ctx context.Context, userID string) ([]*model.Integration, error) {
		if userID != "user-1" {
			t.Errorf("スコープのユーザーIDで一覧取得すべき, got %q", userID)
		}
		return []*model.Integration{
			activeIntegration(model.PlatformPinterest, "acct-1"),
			disconnected,
		}, nil
	}

	report := f.orch.RunFullSync(context.Background(), "user-1")
	if report.Succeeded != 1 || report.Skipped != 1 {
		t.Errorf("成功1件・スキップ1件であるべき, got %+v", report)
	}
}

func TestRunFullSync_ListFailureReturnsEmptyReport(t *testing.T) {
	f := newOrchestratorFixture(t, auth.NewRefresherRegistry(), &mockAdapter{platform: model.PlatformInstagram})
	f.integRepo.listAllFn = func(ctx context.Context) ([]*model.Integration, error) {
		return nil, errors.New("db down")
	}

	report := f.orch.RunFullSync(context.Background(), model.SyncStatusScopeGlobal)
	if report != (Report{}) {
		t.Errorf("一覧取得失敗時は空のレポートを返すべき, got %+v", report)
	}
}
