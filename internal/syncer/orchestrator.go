package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/socialsync/internal/metrics"
	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/platform"
	"github.com/hitoshi/socialsync/internal/repository"
)

// ErrIntegrationDisconnected はDISCONNECTEDの連携に対する同期要求を表す。
var ErrIntegrationDisconnected = errors.New("連携が切断されているため同期できません")

// Report はバッチ同期の実行結果サマリ。
type Report struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// Orchestrator はアカウント同期の全体制御を行う。
// ウィンドウ計画、4ウィンドウの並行フェッチ、一時的エラーのリトライ、
// 認証エラー時の1回限りのリフレッシュ、スナップショットの組み立てと保存を担う。
type Orchestrator struct {
	integRepo     repository.IntegrationRepository
	snapRepo      repository.SnapshotRepository
	registry      *platform.Registry
	creds         *CredentialManager
	collector     metrics.MetricsCollector
	logger        *slog.Logger
	maxConcurrent int
	// now はテストで差し替えるための時刻取得関数。
	now func() time.Time
}

// NewOrchestrator はOrchestratorを生成する。
// maxConcurrentが0以下の場合はデフォルト値5を使用する。
func NewOrchestrator(
	integRepo repository.IntegrationRepository,
	snapRepo repository.SnapshotRepository,
	registry *platform.Registry,
	creds *CredentialManager,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrent int,
) *Orchestrator {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &Orchestrator{
		integRepo:     integRepo,
		snapRepo:      snapRepo,
		registry:      registry,
		creds:         creds,
		collector:     collector,
		logger:        logger,
		maxConcurrent: maxConcurrent,
		now:           time.Now,
	}
}

// SyncOne は(platform, accountID)の連携を1件同期する。
// 連携が見つからない場合はINTEGRATION_NOT_FOUND、DISCONNECTEDの場合は
// ErrIntegrationDisconnectedを返す。
func (o *Orchestrator) SyncOne(ctx context.Context, p model.Platform, accountID string) (*model.Snapshot, error) {
	integ, err := o.integRepo.FindByPlatformAccount(ctx, p, accountID)
	if err != nil {
		return nil, err
	}
	if integ == nil {
		return nil, model.NewIntegrationNotFoundError(string(p), accountID)
	}
	return o.SyncIntegration(ctx, integ)
}

// SyncIntegration は連携1件の同期を実行してスナップショットを保存する。
func (o *Orchestrator) SyncIntegration(ctx context.Context, integ *model.Integration) (*model.Snapshot, error) {
	if !integ.Usable() {
		return nil, ErrIntegrationDisconnected
	}

	start := o.now()
	platformName := string(integ.Platform)

	adapter, err := o.registry.Get(integ.Platform)
	if err != nil {
		return nil, err
	}

	accessToken, err := o.creds.AccessToken(integ)
	if err != nil {
		return nil, err
	}

	holder := &tokenHolder{token: accessToken}

	// 別名（ユーザー名等）で登録されたアカウントを正規IDへ解決する。
	// スナップショットは登録時のアカウントIDをキーとして保存する。
	fetchInteg := *integ
	if resolver, ok := adapter.(platform.AccountResolver); ok {
		resolved, err := o.resolveAccountID(ctx, resolver, integ, holder)
		if err != nil {
			o.recordFailure(integ, err)
			return nil, err
		}
		fetchInteg.AccountID = resolved
	}

	windows := Plan(o.now(), adapter.LagDays())
	date := o.now().UTC().Format("2006-01-02")

	var mu sync.Mutex
	results := make(map[string]model.MetricWindow, 4)

	g, gctx := errgroup.WithContext(ctx)
	for key, win := range windows.ByRawKey() {
		key, win := key, win
		g.Go(func() error {
			metricsWin, err := o.fetchWindow(gctx, adapter, &fetchInteg, integ, holder, win)
			if err != nil {
				return err
			}
			mu.Lock()
			results[key] = *metricsWin
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.recordFailure(integ, err)
		return nil, err
	}

	snapshot := model.NewSnapshot(integ.Platform, integ.AccountID, date, results)
	if err := o.snapRepo.Upsert(ctx, snapshot); err != nil {
		o.recordFailure(integ, err)
		return nil, err
	}

	duration := o.now().Sub(start)
	o.collector.RecordSyncSuccess(platformName)
	o.collector.RecordSyncLatency(platformName, duration)
	o.collector.RecordSnapshotsWritten(1)

	o.logger.Info("アカウントの同期が完了しました",
		slog.String("platform", platformName),
		slog.String("account_id", integ.AccountID),
		slog.String("date", date),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return snapshot, nil
}

// fetchWindow は1ウィンドウを取得する。一時的エラーは1回リトライし、
// 認証エラーは同期全体で1回だけリフレッシュしてから再取得する。
func (o *Orchestrator) fetchWindow(
	ctx context.Context,
	adapter platform.Adapter,
	fetchInteg, integ *model.Integration,
	holder *tokenHolder,
	win Window,
) (*model.MetricWindow, error) {
	retriedTransient := false
	retriedAuth := false

	for {
		metricsWin, err := adapter.FetchWindow(ctx, fetchInteg, holder.current(), win.Start, win.End)
		if err == nil {
			return metricsWin, nil
		}

		o.logWindowError(integ, win, err)

		switch {
		case platform.IsTransient(err) && !retriedTransient:
			retriedTransient = true
			continue
		case platform.IsUnauthorized(err) && !retriedAuth:
			retriedAuth = true
			if _, refreshErr := holder.refresh(ctx, o.creds, integ); refreshErr != nil {
				return nil, refreshErr
			}
			continue
		default:
			return nil, err
		}
	}
}

// resolveAccountID は別名解決を実行する。認証エラー時は1回だけ
// リフレッシュして再試行する。
func (o *Orchestrator) resolveAccountID(
	ctx context.Context,
	resolver platform.AccountResolver,
	integ *model.Integration,
	holder *tokenHolder,
) (string, error) {
	resolved, err := resolver.ResolveAccountID(ctx, integ.AccountID, holder.current())
	if err == nil {
		return resolved, nil
	}
	if !platform.IsUnauthorized(err) {
		return "", err
	}

	if _, refreshErr := holder.refresh(ctx, o.creds, integ); refreshErr != nil {
		return "", refreshErr
	}
	return resolver.ResolveAccountID(ctx, integ.AccountID, holder.current())
}

// RunFullSync はスコープ内の全連携を並行して同期する。
// scopeがSyncStatusScopeGlobalの場合は全連携、それ以外は指定ユーザーの
// 連携を対象とする。1アカウントの失敗がバッチ全体を止めることはない。
func (o *Orchestrator) RunFullSync(ctx context.Context, scope string) Report {
	var integrations []*model.Integration
	var err error
	if scope == model.SyncStatusScopeGlobal {
		integrations, err = o.integRepo.ListAll(ctx)
	} else {
		integrations, err = o.integRepo.ListByUserID(ctx, scope)
	}
	if err != nil {
		o.logger.Error("連携一覧の取得に失敗しました",
			slog.String("scope", scope),
			slog.String("error", err.Error()),
		)
		return Report{}
	}

	if len(integrations) == 0 {
		o.logger.Info("同期対象の連携はありません", slog.String("scope", scope))
		return Report{}
	}

	o.logger.Info("バッチ同期を開始します",
		slog.String("scope", scope),
		slog.Int("integration_count", len(integrations)),
	)

	var mu sync.Mutex
	var report Report

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, o.maxConcurrent)
	var wg sync.WaitGroup

	for _, integ := range integrations {
		if !integ.Usable() {
			report.Skipped++
			o.logger.Info("切断済みの連携をスキップします",
				slog.String("platform", string(integ.Platform)),
				slog.String("account_id", integ.AccountID),
			)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(i *model.Integration) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := o.SyncIntegration(ctx, i)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Succeeded++
			case errors.Is(err, ErrIntegrationDisconnected):
				report.Skipped++
			default:
				report.Failed++
			}
		}(integ)
	}

	wg.Wait()

	o.logger.Info("バッチ同期が完了しました",
		slog.String("scope", scope),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
	)

	return report
}

// recordFailure は同期失敗のメトリクスとログを記録する。
func (o *Orchestrator) recordFailure(integ *model.Integration, err error) {
	o.collector.RecordSyncFailure(string(integ.Platform))
	o.logger.Error("アカウントの同期に失敗しました",
		slog.String("platform", string(integ.Platform)),
		slog.String("account_id", integ.AccountID),
		slog.String("error", err.Error()),
	)
}

// logWindowError はウィンドウ単位の取得エラーを記録する。
func (o *Orchestrator) logWindowError(integ *model.Integration, win Window, err error) {
	o.logger.Warn("ウィンドウの取得に失敗しました",
		slog.String("platform", string(integ.Platform)),
		slog.String("account_id", integ.AccountID),
		slog.Time("window_start", win.Start),
		slog.Time("window_end", win.End),
		slog.String("error", err.Error()),
	)
	var perr *platform.Error
	if errors.As(err, &perr) && perr.StatusCode > 0 {
		o.collector.RecordPlatformHTTPStatus(string(integ.Platform), perr.StatusCode)
	}
}

// tokenHolder は同期1回分のアクセストークンを保持し、
// リフレッシュを同期全体で1回に制限する。
type tokenHolder struct {
	mu        sync.Mutex
	token     string
	refreshed bool
}

// current は現在のアクセストークンを返す。
func (h *tokenHolder) current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

// refresh はトークンをリフレッシュする。別のゴルーチンが既に
// リフレッシュ済みの場合は新しいトークンをそのまま返す。
func (h *tokenHolder) refresh(ctx context.Context, creds *CredentialManager, integ *model.Integration) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refreshed {
		return h.token, nil
	}

	newToken, err := creds.Refresh(ctx, integ)
	if err != nil {
		return "", err
	}

	h.token = newToken
	h.refreshed = true
	return newToken, nil
}
